package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrail serves pages keyed by NextToken; "" is the first page.
type fakeTrail struct {
	pages  map[string]*cloudtrail.LookupEventsOutput
	err    error
	inputs []*cloudtrail.LookupEventsInput
}

func (f *fakeTrail) LookupEvents(_ context.Context, in *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[aws.ToString(in.NextToken)]
	if !ok {
		return &cloudtrail.LookupEventsOutput{}, nil
	}
	return page, nil
}

func s3Event(id, bucket, key string, at time.Time) cttypes.Event {
	payload := fmt.Sprintf(`{"eventSource":"s3.amazonaws.com","sourceIPAddress":"10.0.0.1",`+
		`"userIdentity":{"type":"AWSService","invokedBy":"s3.amazonaws.com"},`+
		`"requestParameters":{"bucketName":%q,"key":%q},`+
		`"resources":[{"type":"AWS::S3::Object","ARN":"arn:aws:s3:::%s/%s"}]}`,
		bucket, key, bucket, key)
	return cttypes.Event{
		EventId:         aws.String(id),
		EventName:       aws.String("DeleteObject"),
		EventSource:     aws.String("s3.amazonaws.com"),
		EventTime:       aws.Time(at),
		CloudTrailEvent: aws.String(payload),
	}
}

func TestRecent_PaginatesAndFilters(t *testing.T) {
	trail := &fakeTrail{pages: map[string]*cloudtrail.LookupEventsOutput{
		"": {
			Events: []cttypes.Event{
				s3Event("e1", "svodvideos", "TvShows/A/ep01.mp4", now.Add(-3*time.Hour)),
				s3Event("e2", "other-bucket", "x.mp4", now.Add(-2*time.Hour)),
			},
			NextToken: aws.String("page-2"),
		},
		"page-2": {
			Events: []cttypes.Event{
				s3Event("e3", "svodvideos", "TvShows/A/nested/dir/ep02.mp4", now.Add(-time.Hour)),
				{
					EventId:     aws.String("e4"),
					EventSource: aws.String("ec2.amazonaws.com"),
					EventTime:   aws.Time(now),
				},
			},
		},
	}}

	f := NewDeletionFinder(trail, "svodvideos", zerolog.Nop())
	f.now = func() time.Time { return now }

	got, err := f.Recent(context.Background(), 24*time.Hour)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "e3", got[0].EventID)
	assert.Equal(t, "TvShows/A/nested/dir/ep02.mp4", got[0].ObjectKey)
	assert.Equal(t, "e1", got[1].EventID)
	assert.Equal(t, "10.0.0.1", got[1].SourceIPAddress)
	assert.JSONEq(t, `{"type":"AWSService","invokedBy":"s3.amazonaws.com"}`, string(got[1].UserIdentity))

	require.Len(t, trail.inputs, 2)
	in := trail.inputs[0]
	assert.Equal(t, now.Add(-24*time.Hour), aws.ToTime(in.StartTime))
	assert.Equal(t, now, aws.ToTime(in.EndTime))
	require.Len(t, in.LookupAttributes, 1)
	assert.Equal(t, cttypes.LookupAttributeKeyEventName, in.LookupAttributes[0].AttributeKey)
	assert.Equal(t, "DeleteObject", aws.ToString(in.LookupAttributes[0].AttributeValue))
}

func TestRecent_Error(t *testing.T) {
	f := NewDeletionFinder(&fakeTrail{err: errors.New("denied")}, "svodvideos", zerolog.Nop())
	_, err := f.Recent(context.Background(), time.Hour)
	assert.ErrorContains(t, err, "denied")
}

func TestDeletionFromEvent_SDKResources(t *testing.T) {
	ev := cttypes.Event{
		EventId:     aws.String("e9"),
		EventSource: aws.String("s3.amazonaws.com"),
		EventTime:   aws.Time(now),
		Resources: []cttypes.Resource{
			{ResourceType: aws.String("AWS::S3::Bucket"), ResourceName: aws.String("svodvideos")},
			{ResourceType: aws.String("AWS::S3::Object"), ResourceName: aws.String("arn:aws:s3:::svodvideos/Movies/a b.mp4")},
		},
	}

	d, ok := deletionFromEvent("svodvideos", ev)
	require.True(t, ok)
	assert.Equal(t, "Movies/a b.mp4", d.ObjectKey)
}

func TestDeletionFromEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		ev   cttypes.Event
	}{
		{"bad payload", cttypes.Event{EventSource: aws.String("s3.amazonaws.com"), CloudTrailEvent: aws.String("{")}},
		{"bucket only", cttypes.Event{
			EventSource: aws.String("s3.amazonaws.com"),
			Resources:   []cttypes.Resource{{ResourceName: aws.String("svodvideos")}},
		}},
		{"prefix collision", cttypes.Event{
			EventSource: aws.String("s3.amazonaws.com"),
			Resources:   []cttypes.Resource{{ResourceName: aws.String("arn:aws:s3:::svodvideos-archive/a.mp4")}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := deletionFromEvent("svodvideos", tt.ev)
			assert.False(t, ok)
		})
	}
}
