// internal/common/aws/sns_test.go
package aws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/models"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func testResult() *models.AllocationResult {
	senior := models.NewTrancheResult(models.TrancheSenior, 1500)
	senior.LoanIDs = []string{"A"}
	senior.LoansAllocated = 1
	senior.BudgetSpent = 1000
	return &models.AllocationResult{
		Criterion:        "Duration",
		Suboption:        "Short-Term",
		ThresholdVersion: "v2",
		InvestorBudget:   1500,
		Tranches:         map[models.TrancheName]*models.TrancheResult{models.TrancheSenior: senior},
	}
}

func TestNotifyAllocation(t *testing.T) {
	var published *sns.PublishInput
	client := NewSNSClientWithAPI(&MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			published = params
			return &sns.PublishOutput{}, nil
		},
	}, "arn:aws:sns:us-east-1:123456789012:allocations")

	require.NoError(t, client.NotifyAllocation(context.Background(), "run-1", testResult()))
	require.NotNil(t, published)
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:allocations", *published.TopicArn)
	assert.Equal(t, "Duration", *published.MessageAttributes["criterion"].StringValue)

	var event AllocationEvent
	require.NoError(t, json.Unmarshal([]byte(*published.Message), &event))
	assert.Equal(t, EventAllocationCompleted, event.Event)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, 1, event.LoansAllocated)
	require.Len(t, event.Tranches, 4)
	assert.Equal(t, models.TrancheSenior, event.Tranches[0].TrancheName)
}

func TestNotifyAllocation_PublishFails(t *testing.T) {
	client := NewSNSClientWithAPI(&MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, stderrors.New("throttled")
		},
	}, "arn")

	err := client.NotifyAllocation(context.Background(), "run-2", testResult())
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, stdErr.Code)
	assert.Equal(t, "run-2", stdErr.Metadata["runId"])
}
