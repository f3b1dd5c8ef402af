// Package har assembles a HAR 1.2 archive from captured network records, for
// the browser.harExport tool.
package har

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"browsernerd-mcp-server/internal/capture"

	cdphar "github.com/chromedp/cdproto/har"
)

const creatorName = "browsernerd-gateway"

// Assemble builds a single-page HAR log from the given network records,
// in the order the pipeline observed them. sessionID becomes the page's
// reference id; pageURL is used as the page title when non-empty.
func Assemble(sessionID, pageURL, creatorVersion string, records []capture.NetworkRecord) *cdphar.HAR {
	pageRef := "page_" + sessionID
	title := pageURL
	if title == "" {
		title = sessionID
	}

	startedAt := time.Now()
	if len(records) > 0 {
		startedAt = records[0].Timestamp
	}

	entries := make([]*cdphar.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, toEntry(pageRef, rec))
	}

	return &cdphar.HAR{
		Log: &cdphar.Log{
			Version: "1.2",
			Creator: &cdphar.Creator{Name: creatorName, Version: creatorVersion},
			Pages: []*cdphar.Page{
				{
					ID:              pageRef,
					StartedDateTime: startedAt.Format(time.RFC3339Nano),
					Title:           title,
					PageTimings:     &cdphar.PageTimings{},
				},
			},
			Entries: entries,
		},
	}
}

func toEntry(pageRef string, rec capture.NetworkRecord) *cdphar.Entry {
	reqBodySize := int64(len(rec.RequestBody))
	respBodySize := int64(len(rec.ResponseBody))

	return &cdphar.Entry{
		Pageref:         pageRef,
		StartedDateTime: rec.Timestamp.Format(time.RFC3339Nano),
		Time:            float64(rec.DurationMs),
		Request: &cdphar.Request{
			Method:      rec.Method,
			URL:         rec.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     toNameValuePairs(rec.RequestHeaders),
			QueryString: []*cdphar.NameValuePair{},
			HeadersSize: -1,
			BodySize:    reqBodySize,
		},
		Response: &cdphar.Response{
			Status:      int64(rec.Status),
			StatusText:  http.StatusText(rec.Status),
			HTTPVersion: "HTTP/1.1",
			Headers:     toNameValuePairs(rec.ResponseHeaders),
			Content: &cdphar.Content{
				Size:     respBodySize,
				MimeType: mimeTypeFromHeaders(rec.ResponseHeaders),
				Text:     rec.ResponseBody,
			},
			HeadersSize: -1,
			BodySize:    respBodySize,
		},
		Timings: &cdphar.Timings{
			Blocked: -1,
			DNS:     -1,
			Connect: -1,
			Send:    0,
			Wait:    float64(rec.DurationMs),
			Receive: 0,
			Ssl:     -1,
		},
	}
}

func toNameValuePairs(headers map[string]string) []*cdphar.NameValuePair {
	out := make([]*cdphar.NameValuePair, 0, len(headers))
	for k, v := range headers {
		out = append(out, &cdphar.NameValuePair{Name: k, Value: v})
	}
	return out
}

func mimeTypeFromHeaders(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "content-type") {
			if mt, _, err := mime.ParseMediaType(v); err == nil {
				return mt
			}
			return v
		}
	}
	return "application/octet-stream"
}
