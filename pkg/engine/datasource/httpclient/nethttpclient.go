package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/buger/jsonparser"
	"github.com/jensneuse/abstractlogger"
	"github.com/tidwall/sjson"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/resolve"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

const (
	ContentEncodingHeader = "Content-Encoding"
	AcceptEncodingHeader  = "Accept-Encoding"
	AcceptHeader          = "Accept"
	ContentTypeHeader     = "Content-Type"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"

	ContentTypeJSON = "application/json"
)

var DefaultNetHttpClient = &http.Client{
	Timeout: time.Second * 10,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 1024,
		TLSHandshakeTimeout: 0 * time.Second,
	},
}

// StatusError is returned for non 2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	// Client defaults to DefaultNetHttpClient.
	Client *http.Client
	// MaxConcurrencyPerService limits the calls in flight per service. Zero means unbounded.
	MaxConcurrencyPerService int64
	// Header is added to every upstream request.
	Header http.Header
	Logger abstractlogger.Logger
}

// Transport sends GraphQL operations to services over HTTP.
type Transport struct {
	client         *http.Client
	header         http.Header
	maxConcurrency int64
	log            abstractlogger.Logger

	mu         sync.Mutex
	semaphores map[string]*semaphore.Weighted

	inFlight atomic.Int64
}

var _ resolve.Transport = (*Transport)(nil)

func NewTransport(options Options) *Transport {
	client := options.Client
	if client == nil {
		client = DefaultNetHttpClient
	}
	logger := options.Logger
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Transport{
		client:         client,
		header:         options.Header,
		maxConcurrency: options.MaxConcurrencyPerService,
		log:            logger,
		semaphores:     map[string]*semaphore.Weighted{},
	}
}

// InFlight returns the number of upstream requests currently in flight.
func (t *Transport) InFlight() int64 {
	return t.inFlight.Load()
}

func (t *Transport) Send(ctx context.Context, service registry.ServiceDescriptor, query string, variables json.RawMessage) (*resolve.TransportResponse, error) {
	if sem := t.semaphore(service.ID); sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
	}

	t.inFlight.Inc()
	defer t.inFlight.Dec()

	body, err := requestBody(query, variables)
	if err != nil {
		return nil, err
	}

	request, err := t.buildRequest(ctx, service.URL, body)
	if err != nil {
		return nil, err
	}

	response, err := t.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	respReader, err := respBodyReader(response)
	if err != nil {
		return nil, err
	}
	defer respReader.Close()

	responseBody, err := io.ReadAll(respReader)
	if err != nil {
		return nil, err
	}

	t.log.Debug("httpclient.Transport.Send",
		abstractlogger.String("service", service.ID),
		abstractlogger.String("url", service.URL),
		abstractlogger.Int("status", response.StatusCode),
	)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, StatusError{StatusCode: response.StatusCode, Body: truncate(responseBody, 256)}
	}

	return parseResponse(responseBody)
}

func (t *Transport) semaphore(serviceID string) *semaphore.Weighted {
	if t.maxConcurrency <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sem, ok := t.semaphores[serviceID]
	if !ok {
		sem = semaphore.NewWeighted(t.maxConcurrency)
		t.semaphores[serviceID] = sem
	}
	return sem
}

func (t *Transport) buildRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for key, values := range t.header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	request.Header.Set(AcceptHeader, ContentTypeJSON)
	request.Header.Set(ContentTypeHeader, ContentTypeJSON)
	request.Header.Set(AcceptEncodingHeader, EncodingGzip)
	request.Header.Add(AcceptEncodingHeader, EncodingDeflate)
	request.Header.Add(AcceptEncodingHeader, EncodingBrotli)

	return request, nil
}

// requestBody renders {"query":"...","variables":{...}}. Variables are omitted when empty.
func requestBody(query string, variables json.RawMessage) ([]byte, error) {
	body, err := sjson.SetBytes([]byte("{}"), "query", query)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(variables)) == 0 {
		return body, nil
	}
	return sjson.SetRawBytes(body, "variables", variables)
}

func parseResponse(body []byte) (*resolve.TransportResponse, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON response: %s", truncate(body, 256))
	}

	out := &resolve.TransportResponse{}

	data, dataType, _, err := jsonparser.Get(body, "data")
	switch {
	case err == jsonparser.KeyPathNotFoundError:
	case err != nil:
		return nil, err
	case dataType == jsonparser.Null:
		out.Data = json.RawMessage("null")
	case dataType == jsonparser.Object:
		out.Data = append(json.RawMessage(nil), data...)
	default:
		return nil, fmt.Errorf("invalid response data of type %s", dataType)
	}

	errs, dataType, _, err := jsonparser.Get(body, "errors")
	switch {
	case err == jsonparser.KeyPathNotFoundError:
	case err != nil:
		return nil, err
	case dataType == jsonparser.Array:
		if err := json.Unmarshal(errs, &out.Errors); err != nil {
			return nil, err
		}
	}

	if out.Data == nil && out.Errors == nil {
		return nil, fmt.Errorf("response contains neither data nor errors")
	}
	return out, nil
}

func respBodyReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get(ContentEncodingHeader) {
	case EncodingGzip:
		return gzip.NewReader(resp.Body)
	case EncodingDeflate:
		return flate.NewReader(resp.Body), nil
	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

func truncate(body []byte, size int) string {
	if len(body) <= size {
		return string(body)
	}
	return string(body[:size]) + "..."
}
