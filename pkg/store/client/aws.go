package client

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

const (
	DefaultRegion = "us-east-1" // Default region if neither flag nor profile sets one
)

// LoadAWSConfig resolves the default credential chain and fails fast when no
// usable credentials are found, so a misconfigured process exits before polling.
func LoadAWSConfig(ctx context.Context, profile, region string) (*awssdk.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithDefaultRegion(DefaultRegion),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	// Test the credentials
	_, err = awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("invalid AWS credentials (profile %q): %w", profile, err)
	}

	return &awsCfg, nil
}
