package metadata

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of metadata reads in flight.
const DefaultConcurrency = 8

type field struct {
	section string
	key     string
	path    string
	dynamic bool
}

// Sections of the identity document and the metadata path of every field.
var documentFields = []field{
	{"InstanceBasic", "InstanceId", "instance-id", false},
	{"InstanceBasic", "InstanceType", "instance-type", false},
	{"InstanceBasic", "InstanceAction", "instance-action", false},
	{"InstanceBasic", "InstanceLifeCycle", "instance-life-cycle", false},

	{"Ami", "AmiId", "ami-id", false},
	{"Ami", "AmiLaunchIndex", "ami-launch-index", false},
	{"Ami", "AmiManifestPath", "ami-manifest-path", false},

	{"Placement", "AvailabilityZone", "placement/availability-zone", false},
	{"Placement", "AvailabilityZoneId", "placement/availability-zone-id", false},
	{"Placement", "Region", "placement/region", false},
	{"Placement", "PartitionNumber", "placement/partition-number", false},

	{"NetworkPrimary", "Hostname", "hostname", false},
	{"NetworkPrimary", "LocalHostname", "local-hostname", false},
	{"NetworkPrimary", "LocalIpv4", "local-ipv4", false},
	{"NetworkPrimary", "PublicHostname", "public-hostname", false},
	{"NetworkPrimary", "PublicIpv4", "public-ipv4", false},
	{"NetworkPrimary", "MacAddress", "mac", false},

	{"BlockDevice", "MappingAmi", "block-device-mapping/ami", false},
	{"BlockDevice", "MappingRoot", "block-device-mapping/root", false},
	{"BlockDevice", "MappingEbs", "block-device-mapping/ebs0", false},
	{"BlockDevice", "MappingEphemeral", "block-device-mapping/ephemeral0", false},

	{"Security", "SecurityGroups", "security-groups", false},
	{"Security", "IamInfo", "iam/info", false},
	{"Security", "IamSecurityCredentials", "iam/security-credentials/", false},

	{"System", "ProductCodes", "product-codes", false},
	{"System", "KernelId", "kernel-id", false},
	{"System", "RamdiskId", "ramdisk-id", false},
	{"System", "ReservationId", "reservation-id", false},
	{"System", "MetricsVhostmd", "metrics/vhostmd", false},
	{"System", "ServicesDomain", "services/domain", false},
	{"System", "ServicesPartition", "services/partition", false},
	{"System", "SystemData", "system", false},
	{"System", "Tags", "tags/instance", false},

	{"SpotInstance", "TerminationTime", "spot/termination-time", false},
	{"SpotInstance", "InstanceAction", "spot/instance-action", false},

	{"Events", "MaintenanceHistory", "events/maintenance/history", false},
	{"Events", "MaintenanceScheduled", "events/maintenance/scheduled", false},
	{"Events", "RecommendationsRebalance", "events/recommendations/rebalance", false},

	{"DynamicData", "InstanceIdentityDocument", "instance-identity/document", true},
	{"DynamicData", "InstanceIdentitySignature", "instance-identity/signature", true},
	{"DynamicData", "InstanceIdentityPkcs7", "instance-identity/pkcs7", true},
}

// Per-interface fields, read under network/interfaces/macs/<mac>/.
var interfaceFields = []struct {
	key  string
	path string
}{
	{"DeviceNumber", "device-number"},
	{"InterfaceId", "interface-id"},
	{"LocalHostname", "local-hostname"},
	{"LocalIpv4s", "local-ipv4s"},
	{"PublicHostname", "public-hostname"},
	{"PublicIpv4s", "public-ipv4s"},
	{"Ipv6s", "ipv6s"},
	{"SecurityGroupIds", "security-group-ids"},
	{"SecurityGroups", "security-groups"},
	{"SubnetId", "subnet-id"},
	{"SubnetIpv4CidrBlock", "subnet-ipv4-cidr-block"},
	{"SubnetIpv6CidrBlocks", "subnet-ipv6-cidr-blocks"},
	{"VpcId", "vpc-id"},
	{"VpcIpv4CidrBlock", "vpc-ipv4-cidr-block"},
	{"VpcIpv4CidrBlocks", "vpc-ipv4-cidr-blocks"},
	{"VpcIpv6CidrBlocks", "vpc-ipv6-cidr-blocks"},
	{"OwnerId", "owner-id"},
}

// Document is the identity document of the running instance. Fields are
// keyed "Section.Key"; unreadable fields hold NotAvailable.
type Document struct {
	CollectionTime    time.Time
	Fields            map[string]string
	NetworkInterfaces []map[string]string
	UserData          string
}

// Value returns the field at section.key, or NotAvailable.
func (d *Document) Value(section, key string) string {
	if v, ok := d.Fields[section+"."+key]; ok {
		return v
	}

	return NotAvailable
}

// MarshalJSON renders the document as one flat object.
func (d *Document) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		flat[k] = v
	}
	flat["CollectionTime"] = d.CollectionTime
	flat["NetworkInterfaces"] = d.NetworkInterfaces
	flat["UserData"] = d.UserData

	return json.Marshal(flat)
}

// Collect reads every document field with at most concurrency reads in
// flight. It never fails: unreadable fields hold NotAvailable.
func (c *Client) Collect(ctx context.Context, concurrency int) *Document {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	doc := &Document{
		CollectionTime: time.Now().UTC(),
		Fields:         make(map[string]string, len(documentFields)),
	}

	values := make([]string, len(documentFields))
	var macs, userData string

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, f := range documentFields {
		g.Go(func() error {
			if f.dynamic {
				values[i] = c.Dynamic(ctx, f.path)
			} else {
				values[i] = c.Get(ctx, f.path)
			}
			return nil
		})
	}
	g.Go(func() error {
		macs = c.Get(ctx, "network/interfaces/macs/")
		return nil
	})
	g.Go(func() error {
		userData = c.UserData(ctx)
		return nil
	})
	_ = g.Wait()

	for i, f := range documentFields {
		doc.Fields[f.section+"."+f.key] = values[i]
	}
	doc.UserData = userData
	doc.NetworkInterfaces = c.collectInterfaces(ctx, macs, concurrency)

	log.Info().
		Str("instance_id", doc.Value("InstanceBasic", "InstanceId")).
		Str("instance_type", doc.Value("InstanceBasic", "InstanceType")).
		Str("region", doc.Value("Placement", "Region")).
		Str("availability_zone", doc.Value("Placement", "AvailabilityZone")).
		Str("private_ip", doc.Value("NetworkPrimary", "LocalIpv4")).
		Str("public_ip", doc.Value("NetworkPrimary", "PublicIpv4")).
		Int("network_interfaces", len(doc.NetworkInterfaces)).
		Msg("Collected instance metadata")

	return doc
}

func (c *Client) collectInterfaces(ctx context.Context, macs string, concurrency int) []map[string]string {
	interfaces := []map[string]string{}
	if macs == NotAvailable {
		return interfaces
	}

	var entries []string
	for _, line := range strings.Split(macs, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, strings.TrimSuffix(line, "/"))
		}
	}

	values := make([][]string, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, mac := range entries {
		values[i] = make([]string, len(interfaceFields))
		for j, f := range interfaceFields {
			g.Go(func() error {
				values[i][j] = c.Get(ctx, "network/interfaces/macs/"+mac+"/"+f.path)
				return nil
			})
		}
	}
	_ = g.Wait()

	for i, mac := range entries {
		iface := map[string]string{"MacAddress": mac}
		for j, f := range interfaceFields {
			iface[f.key] = values[i][j]
		}
		interfaces = append(interfaces, iface)
	}

	return interfaces
}
