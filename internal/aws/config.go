package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// LoadAWSConfig loads the shared AWS config for region. A non-empty endpoint
// overrides the base endpoint of every client (LocalStack, DynamoDB Local).
func LoadAWSConfig(ctx context.Context, region, endpoint string) (sdkaws.Config, error) {
	if region == "" {
		region = DefaultRegion // default fallback
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}
