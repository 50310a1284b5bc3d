package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"
)

// StringSet is a set of strings (all elements are unique)
type StringSet map[string]struct{}

// Push adds the string to the set if not already exists
func (ss StringSet) Push(s string) {
	ss[s] = struct{}{}
}

// Exists returns true if the string already exists in the Set
func (ss StringSet) Exists(s string) bool {
	_, ok := ss[s]
	return ok
}

// Retriable calls f up to n times, sleeping between the tries (exponential backoff starting at sleep)
// It stops as soon as f succeeds, returns a Fatal error or the context is done.
func Retriable(ctx context.Context, f func() error, sleep time.Duration, n int) error {
	var err error
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return MergeErrors(true, err, ctx.Err())
			case <-time.After(sleep):
			}
			sleep *= 2
		}
		if err = f(); err == nil || Fatal(err) {
			return err
		}
	}
	return err
}

// DoRetry sends the request with the client, with N retries in case of temporary errors (network or 5xx),
// and returns the body and the headers of the response.
// The request must have no body or a body that can be replayed (req.GetBody).
func DoRetry(client *http.Client, req *http.Request, nbRetries int) ([]byte, http.Header, error) {
	var e *neturl.Error
	var err error

	if client == nil {
		client = http.DefaultClient
	}
	for i := range nbRetries + 1 {
		time.Sleep(((1 << i) - 1) * time.Second) // Exponential backoff, starting at 0
		if i > 0 && req.GetBody != nil {
			if req.Body, err = req.GetBody(); err != nil {
				return nil, nil, fmt.Errorf("DoRetry.GetBody: %w", err)
			}
		}
		var resp *http.Response
		resp, err = client.Do(req)
		if err != nil {
			if !errors.As(err, &e) || !(e.Timeout() || Temporary(e)) {
				return nil, nil, err
			}
			err = MakeTemporary(err)
			continue
		}
		body, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("%s: %s", resp.Status, body)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
				err = MakeTemporary(err)
				continue
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return nil, nil, err
			}
			err = MakeTemporary(err)
			continue
		}
		if rerr == nil {
			return body, resp.Header, nil
		}
		err = MakeTemporary(rerr)
	}
	return nil, nil, err
}

// PageQueryParam describes a page of a remote catalog and the rows of this page to keep
type PageQueryParam struct {
	Limit            int
	Page             int
	FirstRowToSelect int
	LastRowToSelect  int
}

// ComputePagesToQuery returns the pages of a remote catalog (catalogLimit items per page, first page is 0)
// to query in order to get the clientPage-th page (first page is 0) of clientLimit items.
func ComputePagesToQuery(clientPage, clientLimit, catalogLimit int) []PageQueryParam {
	if clientLimit <= 0 || catalogLimit <= 0 {
		return nil
	}
	firstRow := clientPage * clientLimit
	lastRow := firstRow + clientLimit - 1

	var pages []PageQueryParam
	for page := firstRow / catalogLimit; page <= lastRow/catalogLimit; page++ {
		pageFirstRow := page * catalogLimit
		pageLastRow := pageFirstRow + catalogLimit - 1
		pages = append(pages, PageQueryParam{
			Limit:            catalogLimit,
			Page:             page,
			FirstRowToSelect: max(firstRow, pageFirstRow) - pageFirstRow,
			LastRowToSelect:  min(lastRow, pageLastRow) - pageFirstRow,
		})
	}
	return pages
}

// QueryGetResult returns the rows of the page selected by the PageQueryParam
func QueryGetResult[T any](pageToQuery *PageQueryParam, results []T) []T {
	if pageToQuery.FirstRowToSelect >= len(results) {
		return nil
	}
	last := min(pageToQuery.LastRowToSelect+1, len(results))
	return results[pageToQuery.FirstRowToSelect:last]
}
