package calcbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerAddress(t *testing.T) {
	values := []struct {
		name    string
		inspect string
		address string
	}{
		{
			"Lowest exposed TCP port",
			`[{"Config": {"ExposedPorts": {"9090/tcp": {}, "53/udp": {}, "8000/tcp": {}}}, "NetworkSettings": {"Networks": {"bridge": {"IPAddress": "172.17.0.3"}}}}]`,
			"172.17.0.3:8000",
		},
		{
			"No exposed ports",
			`[{"Config": {"ExposedPorts": null}, "NetworkSettings": {"Networks": {"bridge": {"IPAddress": "172.17.0.4"}}}}]`,
			"172.17.0.4:8080",
		},
		{
			"Only UDP ports",
			`[{"Config": {"ExposedPorts": {"53/udp": {}}}, "NetworkSettings": {"Networks": {"bridge": {"IPAddress": "172.17.0.4"}}}}]`,
			"172.17.0.4:8080",
		},
		{
			"Legacy IP address field",
			`[{"Config": {}, "NetworkSettings": {"IPAddress": "172.17.0.5", "Networks": {}}}]`,
			"172.17.0.5:8080",
		},
	}

	for _, v := range values {
		t.Run(v.name, func(t *testing.T) {
			address, err := containerAddress([]byte(v.inspect), 8080)
			require.NoError(t, err)
			assert.Equal(t, v.address, address)
		})
	}
}

func TestContainerAddressErrors(t *testing.T) {
	values := map[string]string{
		"Invalid JSON": `[{"Config": `,
		"No container": `[]`,
		"No IP":        `[{"Config": {}, "NetworkSettings": {"Networks": {"bridge": {"IPAddress": ""}}}}]`,
	}

	for name, inspect := range values {
		t.Run(name, func(t *testing.T) {
			_, err := containerAddress([]byte(inspect), 8080)
			assert.Error(t, err)
		})
	}
}
