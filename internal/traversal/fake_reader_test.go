package traversal

import "context"

// fakeReader is a stub GraphReader driven by a query-classifying
// function, letting each test shape its own tiny graph without a real
// Neo4j driver.
type fakeReader struct {
	fn    func(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	calls int
}

func (f *fakeReader) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.calls++
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, query, params)
}
