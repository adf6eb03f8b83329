package calcbench

import (
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/tidwall/gjson"
)

// containerAddress extracts host:port of a container's service from the output of docker inspect.
// The IP address is the container's address on the bridge network. The port is the lowest TCP port the
// image exposes, or defaultPort if it exposes none.
func containerAddress(inspectOutput []byte, defaultPort int) (string, error) {
	if !gjson.ValidBytes(inspectOutput) {
		return "", fmt.Errorf("inspect output is not valid JSON")
	}
	container := gjson.GetBytes(inspectOutput, "0")
	if !container.Exists() {
		return "", fmt.Errorf("inspect output contains no container")
	}

	ip := container.Get("NetworkSettings.Networks.bridge.IPAddress").String()
	if ip == "" {
		ip = container.Get("NetworkSettings.IPAddress").String()
	}
	if ip == "" {
		return "", fmt.Errorf("container has no bridge network IP address")
	}

	var ports []nat.Port
	container.Get("Config.ExposedPorts").ForEach(func(key, _ gjson.Result) bool {
		port := nat.Port(key.String())
		if port.Proto() == "tcp" && port.Int() > 0 {
			ports = append(ports, port)
		}
		return true
	})

	port := defaultPort
	if len(ports) > 0 {
		nat.Sort(ports, func(i, j nat.Port) bool {
			return i.Int() < j.Int()
		})
		port = ports[0].Int()
	}

	return fmt.Sprintf("%s:%d", ip, port), nil
}
