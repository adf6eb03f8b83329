package calcbench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// clientTimeout bounds how long a request of a [ServiceClient] may keep its connection busy.
// Test requests are raced against a far shorter deadline, their late responses are read and dropped.
const clientTimeout = 2 * time.Minute

// A ServiceClient talks to the HTTP API of one service under test.
type ServiceClient struct {
	BaseURL string // E.g. http://172.17.0.2:8080

	HTTPClient *http.Client
}

// NewServiceClient creates a client for the service reachable under baseURL
func NewServiceClient(baseURL string) *ServiceClient {
	return &ServiceClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: clientTimeout},
	}
}

// A CalcResponse is a successful evaluation of an equation.
type CalcResponse struct {
	Result   string
	Equation string // The equation as echoed by the service
}

// HealthResponse is the body of a successful healthcheck.
type HealthResponse struct {
	Status string
}

// Up reports whether the service declared itself as up
func (h HealthResponse) Up() bool {
	return h.Status == "UP"
}

// Healthcheck performs a GET /healthcheck.
// Any non-2xx response is returned as an error.
func (c *ServiceClient) Healthcheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthcheck", nil)
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("healthcheck returned status %d", status)
	}
	return &HealthResponse{Status: gjson.GetBytes(body, "status").String()}, nil
}

// Calc submits an equation with POST /calc.
//
// A 4xx response with a JSON object body is returned as an [*ApplicationError], even if it lacks the error or equation.
// Every other failure, including malformed bodies, is returned as a plain error.
func (c *ServiceClient) Calc(ctx context.Context, equation string) (*CalcResponse, error) {
	payload, err := json.Marshal(map[string]string{"equation": equation})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/calc", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	echoed := parsed.Get("equation")
	switch {
	case status == http.StatusOK:
		result := parsed.Get("result")
		if !result.Exists() || !echoed.Exists() {
			return nil, fmt.Errorf("malformed calc response: %.200s", body)
		}
		return &CalcResponse{Result: result.String(), Equation: echoed.String()}, nil
	case status >= 400 && status < 500:
		if !gjson.ValidBytes(body) || !parsed.IsObject() {
			return nil, fmt.Errorf("calc returned status %d with malformed body: %.200s", status, body)
		}
		// The error message and the echoed equation may be missing, which the report flags
		return nil, &ApplicationError{
			StatusCode:  status,
			Message:     parsed.Get("error").String(),
			Equation:    echoed.String(),
			HasEquation: echoed.Exists(),
		}
	default:
		return nil, fmt.Errorf("calc returned unexpected status %d", status)
	}
}

// do sends the request and reads the whole response body
func (c *ServiceClient) do(req *http.Request) (int, []byte, error) {
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body - %v", err)
	}
	return res.StatusCode, body, nil
}
