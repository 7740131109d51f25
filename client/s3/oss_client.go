package s3

import (
	"context"
	"io"
	"os"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

var (
	ArchiveBucket *oss.Bucket

	GetObjectFunc = GetObject
	PutObjectFunc = PutObject
	ListKeysFunc  = ListKeys
)

// Bootstrap connects the archive bucket, it reports false when OSS_ENDPOINT is not configured.
func Bootstrap() (bool, error) {
	if os.Getenv("OSS_ENDPOINT") == "" {
		return false, nil
	}
	bucket, err := BuildBucketFromEnv()
	if err != nil {
		return false, err
	}
	ArchiveBucket = bucket
	return true, nil
}

func BuildBucketFromEnv() (*oss.Bucket, error) {
	endpoint := os.ExpandEnv(os.Getenv("OSS_ENDPOINT"))
	accessKey := os.Getenv("OSS_ACCESS_KEY")
	secretKey := os.Getenv("OSS_SECRET_KEY")
	bucket := os.Getenv("OSS_BUCKET")
	if bucket == "" {
		bucket = "approvalflow"
	}
	return BuildBucket(endpoint, accessKey, secretKey, bucket)
}

func BuildBucket(endpoint, accesskey, secretKey, bucketName string) (*oss.Bucket, error) {
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := oss.New(endpoint, accesskey, secretKey, oss.HTTPClient(nil))
	if err != nil {
		return nil, err
	}

	bucket, err := cli.Bucket(bucketName)
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func startChildSpan(ctx context.Context, operation, key string) opentracing.Span {
	if ctx == nil {
		return nil
	}
	parentSpan := opentracing.SpanFromContext(ctx)
	if parentSpan == nil {
		return nil
	}
	sp := parentSpan.Tracer().StartSpan(operation, opentracing.ChildOf(parentSpan.Context()))
	sp.SetTag("object-key", key)
	return sp
}

func GetObject(ctx context.Context, key string, opts ...oss.Option) (io.ReadCloser, error) {
	sp := startChildSpan(ctx, "get-object", key)
	r, err := ArchiveBucket.GetObject(key, opts...)
	if sp != nil {
		ext.Error.Set(sp, err != nil)
		sp.Finish()
	}
	return r, err
}

func PutObject(ctx context.Context, key string, r io.Reader, opts ...oss.Option) error {
	sp := startChildSpan(ctx, "put-object", key)
	err := ArchiveBucket.PutObject(key, r, opts...)
	if sp != nil {
		ext.Error.Set(sp, err != nil)
		sp.Finish()
	}
	return err
}

func ListKeys(ctx context.Context, prefix string) ([]string, error) {
	sp := startChildSpan(ctx, "list-objects", prefix)
	keys, err := listKeys(prefix)
	if sp != nil {
		ext.Error.Set(sp, err != nil)
		sp.Finish()
	}
	return keys, err
}

func listKeys(prefix string) ([]string, error) {
	var keys []string
	marker := oss.Marker("")
	pre := oss.Prefix(prefix)
	for {
		// default page size is 100
		r, err := ArchiveBucket.ListObjects(marker, pre)
		if err != nil {
			return nil, err
		}
		for _, o := range r.Objects {
			keys = append(keys, o.Key)
		}
		if !r.IsTruncated {
			return keys, nil
		}
		pre = oss.Prefix(r.Prefix)
		marker = oss.Marker(r.NextMarker)
	}
}
