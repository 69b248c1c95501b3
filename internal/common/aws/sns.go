// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"tranche-workers/internal/common/errors"
	"tranche-workers/internal/models"
)

const EventAllocationCompleted = "allocation.completed"

// SNSAPI is the subset of the SNS client the notifier needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client   SNSAPI
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

// NewSNSClientWithAPI wraps an existing client, e.g. a test double.
func NewSNSClientWithAPI(api SNSAPI, topicARN string) *SNSClient {
	return &SNSClient{client: api, topicARN: topicARN}
}

// AllocationEvent is the message body published after a run.
type AllocationEvent struct {
	Event            string                  `json:"event"`
	RunID            string                  `json:"runId"`
	Criterion        string                  `json:"criterion"`
	Suboption        string                  `json:"suboption"`
	ThresholdVersion string                  `json:"thresholdVersion"`
	InvestorBudget   float64                 `json:"investorBudget"`
	LoansAllocated   int                     `json:"loansAllocated"`
	Tranches         []*models.TrancheResult `json:"trancheDetails"`
	CompletedAt      time.Time               `json:"completedAt"`
}

// NotifyAllocation publishes an allocation.completed event for result.
func (s *SNSClient) NotifyAllocation(ctx context.Context, runID string, result *models.AllocationResult) error {
	event := AllocationEvent{
		Event:            EventAllocationCompleted,
		RunID:            runID,
		Criterion:        result.Criterion,
		Suboption:        result.Suboption,
		ThresholdVersion: result.ThresholdVersion,
		InvestorBudget:   result.InvestorBudget,
		LoansAllocated:   result.TotalAllocated(),
		Tranches:         result.Details(),
		CompletedAt:      time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return errors.NewNotificationSendFailedError(EventAllocationCompleted, fmt.Errorf("marshal event: %w", err))
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(s.topicARN),
		Subject:  awssdk.String("Tranche allocation completed"),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(EventAllocationCompleted),
			},
			"criterion": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(result.Criterion),
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError(EventAllocationCompleted, err).
			WithMetadata("runId", runID)
	}
	return nil
}
