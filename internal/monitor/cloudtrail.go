package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/rs/zerolog"
)

const (
	deleteObjectEvent = "DeleteObject"
	s3EventSource     = "s3.amazonaws.com"
)

// LookupEventsAPI is satisfied by *cloudtrail.Client.
type LookupEventsAPI = cloudtrail.LookupEventsAPIClient

// DeletionFinder reads DeleteObject events for one bucket from CloudTrail.
type DeletionFinder struct {
	api    LookupEventsAPI
	bucket string
	now    func() time.Time
	log    zerolog.Logger
}

func NewDeletionFinder(api LookupEventsAPI, bucket string, log zerolog.Logger) *DeletionFinder {
	return &DeletionFinder{api: api, bucket: bucket, now: time.Now, log: log}
}

// Recent returns deletions recorded in the last lookback, newest first.
func (f *DeletionFinder) Recent(ctx context.Context, lookback time.Duration) ([]Deletion, error) {
	end := f.now().UTC()
	start := end.Add(-lookback)

	p := cloudtrail.NewLookupEventsPaginator(f.api, &cloudtrail.LookupEventsInput{
		LookupAttributes: []cttypes.LookupAttribute{{
			AttributeKey:   cttypes.LookupAttributeKeyEventName,
			AttributeValue: aws.String(deleteObjectEvent),
		}},
		StartTime: aws.Time(start),
		EndTime:   aws.Time(end),
	})

	var out []Deletion
	seen := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return out, fmt.Errorf("lookup cloudtrail events: %w", err)
		}
		for _, ev := range page.Events {
			seen++
			if d, ok := deletionFromEvent(f.bucket, ev); ok {
				out = append(out, d)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DeletionTime.After(out[j].DeletionTime) })
	f.log.Debug().Int("events", seen).Int("deletions", len(out)).Msg("CloudTrail lookup finished")
	return out, nil
}

// trailRecord is the part of the CloudTrailEvent payload we read.
type trailRecord struct {
	EventSource       string          `json:"eventSource"`
	SourceIPAddress   string          `json:"sourceIPAddress"`
	UserIdentity      json.RawMessage `json:"userIdentity"`
	RequestParameters struct {
		BucketName string `json:"bucketName"`
		Key        string `json:"key"`
	} `json:"requestParameters"`
	Resources []struct {
		Type string `json:"type"`
		ARN  string `json:"ARN"`
	} `json:"resources"`
}

// deletionFromEvent keeps S3 events that reference bucket. The object key is
// taken from the request parameters, falling back to the ARN suffix after
// "<bucket>/".
func deletionFromEvent(bucket string, ev cttypes.Event) (Deletion, bool) {
	var rec trailRecord
	if raw := aws.ToString(ev.CloudTrailEvent); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return Deletion{}, false
		}
	}

	source := aws.ToString(ev.EventSource)
	if source == "" {
		source = rec.EventSource
	}
	if source != s3EventSource {
		return Deletion{}, false
	}

	key := ""
	if rec.RequestParameters.BucketName == bucket {
		key = rec.RequestParameters.Key
	}

	var arns []string
	for _, r := range rec.Resources {
		arns = append(arns, r.ARN)
	}
	for _, r := range ev.Resources {
		arns = append(arns, aws.ToString(r.ResourceName))
	}

	matched := rec.RequestParameters.BucketName == bucket
	for _, arn := range arns {
		k, ok := keyFromARN(bucket, arn)
		if !ok {
			continue
		}
		matched = true
		if key == "" {
			key = k
		}
	}
	if !matched || key == "" {
		return Deletion{}, false
	}

	return Deletion{
		ObjectKey:       key,
		DeletionTime:    aws.ToTime(ev.EventTime),
		UserIdentity:    rec.UserIdentity,
		SourceIPAddress: rec.SourceIPAddress,
		EventID:         aws.ToString(ev.EventId),
	}, true
}

// keyFromARN extracts the object key from "arn:aws:s3:::<bucket>/<key>".
// Bare bucket ARNs and names report ok with an empty key.
func keyFromARN(bucket, arn string) (string, bool) {
	name := arn
	if i := strings.LastIndex(arn, ":::"); i >= 0 {
		name = arn[i+3:]
	}
	if name == bucket {
		return "", true
	}
	if strings.HasPrefix(name, bucket+"/") {
		return strings.TrimPrefix(name, bucket+"/"), true
	}
	return "", false
}
