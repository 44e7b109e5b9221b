package instances

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ClientFactory builds the DescribeInstances client of a region.
type ClientFactory func(ctx context.Context, region string) (ec2.DescribeInstancesAPIClient, error)

// EC2Enumerator lists instances through the EC2 DescribeInstances API. One
// client is kept per region.
type EC2Enumerator struct {
	factory ClientFactory

	mu      sync.Mutex
	clients map[string]ec2.DescribeInstancesAPIClient
}

// Credentials are optional; without them the default credential chain is
// used.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

func NewEC2Enumerator(creds Credentials) *EC2Enumerator {
	return NewEC2EnumeratorWithFactory(defaultFactory(creds))
}

func NewEC2EnumeratorWithFactory(factory ClientFactory) *EC2Enumerator {
	return &EC2Enumerator{
		factory: factory,
		clients: make(map[string]ec2.DescribeInstancesAPIClient),
	}
}

func defaultFactory(creds Credentials) ClientFactory {
	return func(ctx context.Context, region string) (ec2.DescribeInstancesAPIClient, error) {
		opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
		if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
			))
		}

		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.New().Wrap(ErrClientConfig, err)
		}

		return ec2.NewFromConfig(cfg), nil
	}
}

func (e *EC2Enumerator) client(ctx context.Context, region string) (ec2.DescribeInstancesAPIClient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.clients[region]; ok {
		return client, nil
	}

	client, err := e.factory(ctx, region)
	if err != nil {
		return nil, err
	}
	e.clients[region] = client

	return client, nil
}

func (e *EC2Enumerator) Enumerate(ctx context.Context, region string) ([]Record, error) {
	client, err := e.client(ctx, region)
	if err != nil {
		return nil, err
	}

	records := []Record{}
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.New().Wrap(ErrEnumerationFailed, err)
		}

		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == types.InstanceStateNameTerminated {
					continue
				}
				records = append(records, Record{
					ID:        aws.ToString(instance.InstanceId),
					Name:      nameTag(instance.Tags),
					PrivateIP: aws.ToString(instance.PrivateIpAddress),
					PublicIP:  aws.ToString(instance.PublicIpAddress),
					Region:    region,
				})
			}
		}
	}

	log.Debug().Str("region", region).Int("instances", len(records)).Msg("Enumerated instances")

	return records, nil
}

func nameTag(tags []types.Tag) string {
	for _, tag := range tags {
		if strings.EqualFold(aws.ToString(tag.Key), "Name") {
			return aws.ToString(tag.Value)
		}
	}

	return ""
}
