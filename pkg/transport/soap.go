package transport

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
	"github.com/marketingops/sfmc-inventory/pkg/ratelimit"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

const (
	soapEnvNS     = "http://schemas.xmlsoap.org/soap/envelope/"
	partnerAPINS  = "http://exacttarget.com/wsdl/partnerAPI"
	xsiNS         = "http://www.w3.org/2001/XMLSchema-instance"
	fueloauthNS   = "http://exacttarget.com"

	// ContinueRequest paging never runs past this many pages.
	maxSOAPPages = 100

	statusOK       = "OK"
	statusMoreData = "MoreDataAvailable"
)

// SimpleFilter is a single-property SOAP retrieve filter.
type SimpleFilter struct {
	Property string
	Operator string // equals, like, greaterThan, ...
	Value    string
}

// RetrieveResult is one page of a SOAP retrieve.
type RetrieveResult struct {
	OverallStatus string
	RequestID     string
	Objects       []map[string]any
}

// HasMore reports whether a ContinueRequest would return further pages.
func (r *RetrieveResult) HasMore() bool {
	return r.OverallStatus == statusMoreData
}

// SoapClient calls the tenant SOAP API (Service.asmx) with auth, pacing and
// the same retry policy as the REST client.
type SoapClient struct {
	endpoint string
	tokens   TokenSource
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger
}

// NewSoapClient creates a SOAP client. timeout applies per request attempt.
func NewSoapClient(endpoint string, tokens TokenSource, limiter *ratelimit.Limiter, timeout time.Duration) *SoapClient {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &SoapClient{
		endpoint: endpoint,
		tokens:   tokens,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		logger:   log.WithComponent("soap"),
	}
}

// Retrieve fetches one page of objectType with the given properties and
// optional filter.
func (c *SoapClient) Retrieve(ctx context.Context, objectType string, properties []string, filter *SimpleFilter) (*RetrieveResult, error) {
	body := buildRetrieveRequest(objectType, properties, filter, "")
	return c.call(ctx, body)
}

// Continue fetches the next page for a prior retrieve's RequestID.
func (c *SoapClient) Continue(ctx context.Context, objectType string, properties []string, requestID string) (*RetrieveResult, error) {
	body := buildRetrieveRequest(objectType, properties, nil, requestID)
	return c.call(ctx, body)
}

// RetrieveAll pages through a retrieve until the server reports no more
// data, the page ceiling is hit, or ctx is canceled. Returns all objects and
// the number of pages fetched.
func (c *SoapClient) RetrieveAll(ctx context.Context, objectType string, properties []string, filter *SimpleFilter) ([]map[string]any, int, error) {
	var all []map[string]any

	res, err := c.Retrieve(ctx, objectType, properties, filter)
	if err != nil {
		return nil, 0, err
	}
	all = append(all, res.Objects...)
	pages := 1

	for res.HasMore() && pages < maxSOAPPages {
		if err := ctx.Err(); err != nil {
			return all, pages, types.WrapError(types.ErrCanceled, "retrieve canceled", err)
		}
		res, err = c.Continue(ctx, objectType, properties, res.RequestID)
		if err != nil {
			return all, pages, err
		}
		all = append(all, res.Objects...)
		pages++
	}

	if res.HasMore() {
		c.logger.Warn().Str("object_type", objectType).Int("pages", pages).
			Msg("stopped paging at ceiling with more data available")
	}
	return all, pages, nil
}

func (c *SoapClient) call(ctx context.Context, body string) (*RetrieveResult, error) {
	var lastErr error
	retried401 := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx, "soap"); err != nil {
			return nil, types.WrapError(types.ErrCanceled, "rate limit wait interrupted", err)
		}

		status, data, err := c.attempt(ctx, body)
		c.limiter.Release("soap", err == nil && status < 500 && status != http.StatusTooManyRequests)

		if err != nil {
			if ctx.Err() != nil {
				return nil, types.WrapError(types.ErrCanceled, "request canceled", ctx.Err())
			}
			lastErr = err
			metrics.APIRetriesTotal.WithLabelValues("soap").Inc()
			sleepCtx(ctx, backoff(attempt))
			continue
		}

		metrics.APIRequestsTotal.WithLabelValues("soap", strconv.Itoa(status/100*100)).Inc()

		switch {
		case status == http.StatusOK:
			return parseRetrieveResponse(data)

		case status == http.StatusUnauthorized:
			if retried401 {
				return nil, types.NewError(types.ErrHTTPNonRetryable, "unauthorized after token refresh").
					WithContext("status", "401")
			}
			retried401 = true
			c.tokens.Invalidate()
			attempt--
			continue

		case isRetryableStatus(status):
			lastErr = fmt.Errorf("soap endpoint returned %d", status)
			metrics.APIRetriesTotal.WithLabelValues("soap").Inc()
			sleepCtx(ctx, backoff(attempt))
			continue

		default:
			return nil, types.NewError(types.ErrHTTPNonRetryable,
				fmt.Sprintf("soap endpoint returned %d: %s", status, excerpt(data))).
				WithContext("status", strconv.Itoa(status))
		}
	}

	if ctx.Err() != nil {
		return nil, types.WrapError(types.ErrCanceled, "request canceled", ctx.Err())
	}
	return nil, types.WrapError(types.ErrHTTPRetryableExhausted,
		fmt.Sprintf("soap call failed after %d attempts", maxAttempts), lastErr)
}

func (c *SoapClient) attempt(ctx context.Context, body string) (int, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	envelope := buildEnvelope(token, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(envelope))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "Retrieve")

	timer := metrics.NewTimer()
	resp, err := c.client.Do(req)
	timer.ObserveDurationVec(metrics.APIRequestDuration, "soap")
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// --- envelope construction ---

func buildEnvelope(token, body string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<s:Envelope xmlns:s="` + soapEnvNS + `" xmlns:xsi="` + xsiNS + `">`)
	b.WriteString(`<s:Header><fueloauth xmlns="` + fueloauthNS + `">`)
	xmlEscape(&b, token)
	b.WriteString(`</fueloauth></s:Header>`)
	b.WriteString(`<s:Body>`)
	b.WriteString(body)
	b.WriteString(`</s:Body></s:Envelope>`)
	return b.String()
}

func buildRetrieveRequest(objectType string, properties []string, filter *SimpleFilter, continueID string) string {
	var b strings.Builder
	b.WriteString(`<RetrieveRequestMsg xmlns="` + partnerAPINS + `"><RetrieveRequest>`)

	if continueID != "" {
		b.WriteString(`<ContinueRequest>`)
		xmlEscape(&b, continueID)
		b.WriteString(`</ContinueRequest>`)
	}

	b.WriteString(`<ObjectType>`)
	xmlEscape(&b, objectType)
	b.WriteString(`</ObjectType>`)

	for _, p := range properties {
		b.WriteString(`<Properties>`)
		xmlEscape(&b, p)
		b.WriteString(`</Properties>`)
	}

	if filter != nil && continueID == "" {
		b.WriteString(`<Filter xsi:type="SimpleFilterPart"><Property>`)
		xmlEscape(&b, filter.Property)
		b.WriteString(`</Property><SimpleOperator>`)
		xmlEscape(&b, filter.Operator)
		b.WriteString(`</SimpleOperator><Value>`)
		xmlEscape(&b, filter.Value)
		b.WriteString(`</Value></Filter>`)
	}

	b.WriteString(`</RetrieveRequest></RetrieveRequestMsg>`)
	return b.String()
}

func xmlEscape(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

// --- response parsing ---

// xmlNode is a generic element tree used to decode responses without
// per-object-type structs.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// parseRetrieveResponse extracts OverallStatus, RequestID and Results from a
// RetrieveResponseMsg, decoding each result into a namespace-stripped map.
func parseRetrieveResponse(data []byte) (*RetrieveResult, error) {
	var root xmlNode
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, types.WrapError(types.ErrParse, "failed to parse soap response", err)
	}

	msg := findNode(&root, "RetrieveResponseMsg")
	if msg == nil {
		if fault := findNode(&root, "Fault"); fault != nil {
			return nil, types.NewError(types.ErrHTTPNonRetryable,
				"soap fault: "+childText(fault, "faultstring"))
		}
		return nil, types.NewError(types.ErrParse, "soap response missing RetrieveResponseMsg")
	}

	res := &RetrieveResult{
		OverallStatus: childText(msg, "OverallStatus"),
		RequestID:     childText(msg, "RequestID"),
	}

	if res.OverallStatus != statusOK && res.OverallStatus != statusMoreData {
		return nil, fmt.Errorf("retrieve failed with status %q", res.OverallStatus)
	}

	for i := range msg.Children {
		child := &msg.Children[i]
		if child.XMLName.Local == "Results" {
			if obj, ok := nodeToValue(child).(map[string]any); ok {
				res.Objects = append(res.Objects, obj)
			}
		}
	}
	return res, nil
}

// findNode walks the tree depth-first for the first element with the given
// local name.
func findNode(n *xmlNode, local string) *xmlNode {
	if n.XMLName.Local == local {
		return n
	}
	for i := range n.Children {
		if found := findNode(&n.Children[i], local); found != nil {
			return found
		}
	}
	return nil
}

func childText(n *xmlNode, local string) string {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return strings.TrimSpace(n.Children[i].Content)
		}
	}
	return ""
}

// nodeToValue converts an element to either its text content (leaf) or a map
// (branch). Attributes become "@name" keys and repeated sibling elements
// collapse into a slice. Namespaces are dropped.
func nodeToValue(n *xmlNode) any {
	if len(n.Children) == 0 && len(n.Attrs) == 0 {
		return strings.TrimSpace(n.Content)
	}

	m := make(map[string]any)
	for _, attr := range n.Attrs {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		m["@"+attr.Name.Local] = attr.Value
	}
	if text := strings.TrimSpace(n.Content); text != "" && len(n.Children) == 0 {
		m["#text"] = text
	}

	for i := range n.Children {
		child := &n.Children[i]
		key := child.XMLName.Local
		value := nodeToValue(child)

		if existing, ok := m[key]; ok {
			if list, ok := existing.([]any); ok {
				m[key] = append(list, value)
			} else {
				m[key] = []any{existing, value}
			}
		} else {
			m[key] = value
		}
	}

	if len(m) == 0 {
		return strings.TrimSpace(n.Content)
	}
	return m
}
