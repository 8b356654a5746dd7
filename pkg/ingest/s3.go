package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
)

// Downloader pulls form exports from the shared S3 bucket. Credentials come
// from the default AWS chain.
type Downloader struct {
	client *s3.Client
	bucket string
}

func NewDownloader(ctx context.Context, region, bucket string) (*Downloader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &Downloader{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

// DownloadFormData fetches data/<table>.csv for each form table into the
// local data directory.
func (d *Downloader) DownloadFormData(ctx context.Context, tables []string, dataDir string) error {
	for _, table := range tables {
		key := "data/" + table + ".csv"
		destination := filepath.Join(dataDir, table+".csv")
		if err := d.downloadFile(ctx, key, destination); err != nil {
			return fmt.Errorf("failed to download %s: %w", key, err)
		}
		logger.Log.WithFields(map[string]interface{}{
			"bucket": d.bucket,
			"key":    key,
		}).Info("Downloaded form data")
	}
	return nil
}

func (d *Downloader) downloadFile(ctx context.Context, key, destination string) error {
	output, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &d.bucket,
		Key:    &key,
	})
	if err != nil {
		return err
	}
	defer output.Body.Close()

	file, err := os.Create(filepath.Clean(destination))
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, output.Body)
	return err
}
