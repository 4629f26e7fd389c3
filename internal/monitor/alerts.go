package monitor

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
)

const (
	alarmNamespace = "S3/Lifecycle"
	alarmMetric    = "ObjectsDeleted"
	alarmPeriod    = 86400
)

// CloudWatchAPI is the subset of *cloudwatch.Client used for the alarm.
type CloudWatchAPI interface {
	PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)
}

// SNSAPI is the subset of *sns.Client used for alerts.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var (
	_ CloudWatchAPI = (*cloudwatch.Client)(nil)
	_ SNSAPI        = (*sns.Client)(nil)
)

type Alerter struct {
	cw        CloudWatchAPI
	sns       SNSAPI
	bucket    string
	topicARN  string
	threshold int
	log       zerolog.Logger
}

func NewAlerter(cw CloudWatchAPI, snsAPI SNSAPI, bucket, topicARN string, threshold int, log zerolog.Logger) *Alerter {
	return &Alerter{
		cw:        cw,
		sns:       snsAPI,
		bucket:    bucket,
		topicARN:  topicARN,
		threshold: threshold,
		log:       log,
	}
}

func AlarmName(bucket string) string {
	return "S3-LifecycleDeletions-" + bucket
}

// EnsureAlarm creates or updates the daily deletion alarm. PutMetricAlarm
// overwrites an alarm with the same name.
func (a *Alerter) EnsureAlarm(ctx context.Context) error {
	name := AlarmName(a.bucket)
	_, err := a.cw.PutMetricAlarm(ctx, &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(name),
		AlarmDescription:   aws.String(fmt.Sprintf("Alert when more than %d objects are deleted by lifecycle policy in %s", a.threshold, a.bucket)),
		ComparisonOperator: cwtypes.ComparisonOperatorGreaterThanThreshold,
		EvaluationPeriods:  aws.Int32(1),
		MetricName:         aws.String(alarmMetric),
		Namespace:          aws.String(alarmNamespace),
		Period:             aws.Int32(alarmPeriod),
		Statistic:          cwtypes.StatisticSum,
		Threshold:          aws.Float64(float64(a.threshold)),
		ActionsEnabled:     aws.Bool(true),
		AlarmActions:       []string{a.topicARN},
		Dimensions: []cwtypes.Dimension{{
			Name:  aws.String("BucketName"),
			Value: aws.String(a.bucket),
		}},
		Unit: cwtypes.StandardUnitCount,
	})
	if err != nil {
		return fmt.Errorf("put metric alarm %s: %w", name, err)
	}
	a.log.Info().Str("alarm", name).Msg("CloudWatch alarm configured")
	return nil
}

// AlertIfDue publishes an SNS alert when more than threshold objects are due
// today. It reports whether a message was sent.
func (a *Alerter) AlertIfDue(ctx context.Context, dueToday int) (bool, error) {
	if dueToday <= a.threshold {
		return false, nil
	}

	msg := fmt.Sprintf("ALERT: High number of objects scheduled for deletion\n\n"+
		"Bucket: %s\n"+
		"Objects to be deleted today: %d\n"+
		"Threshold: %d\n\n"+
		"Please review the lifecycle policy and tagged objects.\n",
		a.bucket, dueToday, a.threshold)

	_, err := a.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String("S3 Lifecycle Alert: " + a.bucket),
		Message:  aws.String(msg),
	})
	if err != nil {
		return false, fmt.Errorf("publish alert: %w", err)
	}
	a.log.Warn().Int("due_today", dueToday).Int("threshold", a.threshold).Msg("Lifecycle alert sent")
	return true, nil
}
