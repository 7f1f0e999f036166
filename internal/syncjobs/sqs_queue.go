package syncjobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const jobTypeAttribute = "job_type"

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries sync jobs over one SQS queue (or LocalStack in dev).
type SQSQueue struct {
	client sqsAPI
	url    string
}

// NewSQSQueue panics when client or url is missing.
func NewSQSQueue(client sqsAPI, url string) *SQSQueue {
	if client == nil {
		panic("syncjobs: SQS client required")
	}
	if url == "" {
		panic("syncjobs: SQS queue URL required")
	}
	return &SQSQueue{client: client, url: url}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			jobTypeAttribute: {DataType: aws.String("String"), StringValue: aws.String(jobType)},
		},
	}
	if _, err := q.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("syncjobs: send: %w", err)
	}
	return nil
}

// Receive long-polls for up to maxMessages jobs. The approximate receive
// count becomes queueMessage.Attempt.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.url),
		MaxNumberOfMessages:         int32(maxMessages),
		WaitTimeSeconds:             int32(waitSeconds),
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("syncjobs: receive: %w", err)
	}

	messages := make([]queueMessage, len(out.Messages))
	for i, m := range out.Messages {
		attempt, err := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
		if err != nil || attempt < 1 {
			attempt = 1
		}
		messages[i] = queueMessage{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Attempt:       attempt,
		}
	}
	return messages, nil
}

// Delete acknowledges a job. An empty handle is a no-op.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("syncjobs: delete: %w", err)
	}
	return nil
}
