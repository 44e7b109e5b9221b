package instances

import (
	"context"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// Identity describes the instance this process runs on.
type Identity struct {
	InstanceID       string `json:"InstanceId"`
	Region           string `json:"Region"`
	AvailabilityZone string `json:"AvailabilityZone"`
	InstanceType     string `json:"InstanceType"`
}

// CurrentInstance reads the signed identity document of the running
// instance. endpoint overrides the metadata service address when set.
func CurrentInstance(ctx context.Context, endpoint string) (Identity, error) {
	client := imds.New(imds.Options{Endpoint: endpoint})

	out, err := client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return Identity{}, errors.New().Wrap(ErrIdentityFailed, err)
	}

	doc := out.InstanceIdentityDocument
	if doc.InstanceID == "" || doc.AvailabilityZone == "" {
		return Identity{}, errors.New().WithMessage(ErrIdentityFailed, "identity document is missing instance ID or availability zone")
	}

	region := doc.Region
	if region == "" {
		region = doc.AvailabilityZone[:len(doc.AvailabilityZone)-1]
	}

	return Identity{
		InstanceID:       doc.InstanceID,
		Region:           region,
		AvailabilityZone: doc.AvailabilityZone,
		InstanceType:     doc.InstanceType,
	}, nil
}
