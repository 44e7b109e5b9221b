package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIMDS serves metadata values. When requireToken is set, reads without
// the session token are rejected.
type fakeIMDS struct {
	values       map[string]string
	tokenStatus  int
	requireToken bool
	mints        atomic.Int32
	v1Reads      atomic.Int32
}

func (f *fakeIMDS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == tokenPath {
		if r.Method != http.MethodPut || r.Header.Get(tokenTTLHeader) != "21600" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		f.mints.Add(1)
		_, _ = w.Write([]byte("session-token\n"))
		return
	}

	token := r.Header.Get(tokenHeader)
	if token == "" {
		f.v1Reads.Add(1)
		if f.requireToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	} else if token != "session-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	v, ok := f.values[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(v))
}

func newTestClient(t *testing.T, imds *fakeIMDS) *Client {
	t.Helper()
	srv := httptest.NewServer(imds)
	t.Cleanup(srv.Close)

	return NewClient(ClientOptions{Endpoint: srv.URL + "/", Timeout: time.Second})
}

func TestClientGetWithToken(t *testing.T) {
	imds := &fakeIMDS{
		requireToken: true,
		values: map[string]string{
			"/latest/meta-data/instance-id":              "i-0abc\n",
			"/latest/dynamic/instance-identity/document": `{"region":"eu-west-1"}`,
			"/latest/user-data":                          "#!/bin/sh\necho hi\n",
		},
	}
	c := newTestClient(t, imds)

	assert.Equal(t, "i-0abc", c.Get(context.Background(), "instance-id"))
	assert.Equal(t, `{"region":"eu-west-1"}`, c.Dynamic(context.Background(), "instance-identity/document"))
	assert.Equal(t, "#!/bin/sh\necho hi\n", c.UserData(context.Background()))

	assert.Equal(t, int32(1), imds.mints.Load(), "token is cached across reads")
	assert.Zero(t, imds.v1Reads.Load())
	assert.Equal(t, "session-token", c.Tokens().Cached().Value)
}

func TestClientFallsBackToV1(t *testing.T) {
	imds := &fakeIMDS{
		tokenStatus: http.StatusForbidden,
		values: map[string]string{
			"/latest/meta-data/instance-type": "t3.micro",
		},
	}
	c := newTestClient(t, imds)

	assert.Equal(t, "t3.micro", c.Get(context.Background(), "instance-type"))
	assert.Equal(t, int32(1), imds.v1Reads.Load())
}

func TestClientNotAvailable(t *testing.T) {
	imds := &fakeIMDS{
		values: map[string]string{
			"/latest/meta-data/empty": "   ",
		},
	}
	c := newTestClient(t, imds)

	assert.Equal(t, NotAvailable, c.Get(context.Background(), "spot/termination-time"))
	assert.Equal(t, NotAvailable, c.Get(context.Background(), "empty"))
	assert.Equal(t, NotAvailable, c.UserData(context.Background()))
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientOptions{Endpoint: url, Timeout: 200 * time.Millisecond})
	assert.Equal(t, NotAvailable, c.Get(context.Background(), "instance-id"))
	assert.Empty(t, c.Tokens().Cached().Value)
}

func TestCollectDocument(t *testing.T) {
	imds := &fakeIMDS{
		requireToken: true,
		values: map[string]string{
			"/latest/meta-data/instance-id":                                             "i-0abc",
			"/latest/meta-data/placement/region":                                        "eu-west-1",
			"/latest/meta-data/local-ipv4":                                              "10.0.0.12",
			"/latest/meta-data/network/interfaces/macs/":                                "0a:1b:2c:3d:4e:5f/\n0a:1b:2c:3d:4e:60/\n",
			"/latest/meta-data/network/interfaces/macs/0a:1b:2c:3d:4e:5f/device-number": "0",
			"/latest/meta-data/network/interfaces/macs/0a:1b:2c:3d:4e:5f/subnet-id":     "subnet-1",
			"/latest/meta-data/network/interfaces/macs/0a:1b:2c:3d:4e:60/device-number": "1",
		},
	}
	c := newTestClient(t, imds)

	doc := c.Collect(context.Background(), 4)

	assert.Equal(t, "i-0abc", doc.Value("InstanceBasic", "InstanceId"))
	assert.Equal(t, "eu-west-1", doc.Value("Placement", "Region"))
	assert.Equal(t, NotAvailable, doc.Value("SpotInstance", "TerminationTime"))
	assert.Equal(t, NotAvailable, doc.UserData)
	assert.Len(t, doc.Fields, len(documentFields))

	require.Len(t, doc.NetworkInterfaces, 2)
	assert.Equal(t, "0a:1b:2c:3d:4e:5f", doc.NetworkInterfaces[0]["MacAddress"])
	assert.Equal(t, "subnet-1", doc.NetworkInterfaces[0]["SubnetId"])
	assert.Equal(t, "1", doc.NetworkInterfaces[1]["DeviceNumber"])
	assert.Equal(t, NotAvailable, doc.NetworkInterfaces[1]["SubnetId"])

	assert.GreaterOrEqual(t, imds.mints.Load(), int32(1))
	assert.LessOrEqual(t, imds.mints.Load(), int32(4), "at most one mint per concurrent first read")

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "i-0abc", flat["InstanceBasic.InstanceId"])
	assert.Equal(t, "10.0.0.12", flat["NetworkPrimary.LocalIpv4"])
	assert.Contains(t, flat, "CollectionTime")
	assert.Len(t, flat["NetworkInterfaces"], 2)
	for key := range flat {
		assert.False(t, strings.HasPrefix(key, "."), key)
	}
}

func TestCollectWithoutInterfaces(t *testing.T) {
	c := newTestClient(t, &fakeIMDS{values: map[string]string{}})

	doc := c.Collect(context.Background(), 0)
	assert.Empty(t, doc.NetworkInterfaces)
	assert.Equal(t, NotAvailable, doc.Value("InstanceBasic", "InstanceId"))
}
