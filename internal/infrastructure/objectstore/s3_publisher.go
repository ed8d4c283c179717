package objectstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

// putObjectAPI is the part of the S3 client the publisher needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher writes each report as a markdown object.
type S3Publisher struct {
	client        putObjectAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

var _ ports.Publisher = (*S3Publisher)(nil)

// NewS3Publisher builds an S3 client; a custom endpoint switches to path-style addressing.
func NewS3Publisher(cfg config.S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 publisher misconfigured")
	}

	awsCfg := aws.Config{Region: cfg.Region}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Publisher{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Publish uploads the report to {prefix}{qid}/{runID}.md and returns its location.
func (p *S3Publisher) Publish(ctx context.Context, report domain.InsightReport) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("s3 publisher misconfigured")
	}

	key := objectKey(p.prefix, report)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(markdown(report)),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	if p.publicBaseURL != "" {
		return p.publicBaseURL + "/" + key, nil
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

func objectKey(prefix string, report domain.InsightReport) string {
	runID := report.RunID
	if runID == "" {
		runID = report.CreatedAt.UTC().Format("20060102T150405Z")
	}
	return prefix + report.QuestionID + "/" + runID + ".md"
}

func markdown(report domain.InsightReport) string {
	var b strings.Builder
	b.WriteString("# " + report.Title() + "\n\n")
	b.WriteString("**Question:** " + strings.TrimSpace(report.QuestionText) + "\n\n")
	b.WriteString(strings.TrimSpace(report.Insights) + "\n")
	return b.String()
}
