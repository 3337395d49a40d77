package jobs

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rossjameslee/hermes-api-demo/ebay"
	"github.com/rossjameslee/hermes-api-demo/llm"
	"github.com/rossjameslee/hermes-api-demo/models"
	"github.com/rossjameslee/hermes-api-demo/pipeline"
)

func testPipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Config: pipeline.DefaultConfig(),
		LLM:    llm.NewClient(http.DefaultClient, llm.Config{}),
		Ebay:   ebay.NewClient(http.DefaultClient, "SANDBOX", "", "", ""),
	}
}

func testRequest() *models.ListingRequest {
	return &models.ListingRequest{
		ImagesSource:        models.MultipleSource([]string{"https://cdn.example.com/1.jpg"}),
		SKU:                 "job-sku-1",
		MerchantLocationKey: "loc-1",
		FulfillmentPolicyID: "fulfill-1",
		PaymentPolicyID:     "payment-1",
		ReturnPolicyID:      "return-1",
	}
}

func awaitState(t *testing.T, q *Queue, id uuid.UUID, want State) *Info {
	t.Helper()
	var deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, ok := q.Get(id)
		require.True(t, ok)
		if info.State == want {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
	info, _ := q.Get(id)
	t.Fatalf("job %s stuck in state %s, want %s", id, info.State, want)
	return nil
}

func TestEnqueueRecordsQueuedState(t *testing.T) {
	var q = NewQueue(testPipeline(), 4)

	id, err := q.Enqueue(testRequest(), nil)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	info, ok := q.Get(id)
	require.True(t, ok)
	require.Equal(t, StateQueued, info.State)
	require.Nil(t, info.Result)
}

func TestWorkerCompletesJob(t *testing.T) {
	var q = NewQueue(testPipeline(), 4)
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	id, err := q.Enqueue(testRequest(), nil)
	require.NoError(t, err)

	info := awaitState(t, q, id, StateCompleted)
	require.NotNil(t, info.Result)
	require.Regexp(t, `^HER-[0-9a-f]{32}$`, info.Result.ListingID)
	require.Len(t, info.Result.Stages, 9)
	require.Empty(t, info.Error)
}

func TestWorkerRecordsFailureStage(t *testing.T) {
	var q = NewQueue(testPipeline(), 4)
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var request = testRequest()
	request.ImagesSource = models.SingleSource("   ")
	id, err := q.Enqueue(request, nil)
	require.NoError(t, err)

	info := awaitState(t, q, id, StateFailed)
	require.Nil(t, info.Result)
	require.Equal(t, "no images provided", info.Error)
	require.NotNil(t, info.Stage)
	require.Equal(t, "resolve_images", *info.Stage)
}

func TestEnqueueFullQueue(t *testing.T) {
	// No worker running, so the channel fills at its capacity.
	var q = NewQueue(testPipeline(), 2)

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(testRequest(), nil)
		require.NoError(t, err)
	}

	id, err := q.Enqueue(testRequest(), nil)
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, uuid.Nil, id)

	// The rejected job leaves no status entry behind.
	_, ok := q.Get(id)
	require.False(t, ok)
}

func TestGetUnknownJob(t *testing.T) {
	var q = NewQueue(testPipeline(), 1)
	_, ok := q.Get(uuid.New())
	require.False(t, ok)
}

func TestNewQueueFloorsCapacity(t *testing.T) {
	var q = NewQueue(testPipeline(), 0)
	require.Equal(t, 64, cap(q.ch))
}
