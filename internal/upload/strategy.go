package upload

import (
	"mime/multipart"
	"sort"
)

// Strategy pulls file parts out of a parsed multipart form. Extract returns
// nil when the strategy does not apply to the request.
type Strategy struct {
	Name    string
	Extract func(form *multipart.Form) []*multipart.FileHeader
}

// DefaultStrategies is the fixed order tried for every upload: a multi-file
// "files" field, then a single "file" field, then any file field at all.
var DefaultStrategies = []Strategy{
	{Name: "files", Extract: byField("files", "files[]")},
	{Name: "file", Extract: byField("file")},
	{Name: "any", Extract: anyField},
}

func byField(names ...string) func(*multipart.Form) []*multipart.FileHeader {
	return func(form *multipart.Form) []*multipart.FileHeader {
		var out []*multipart.FileHeader
		for _, name := range names {
			out = append(out, form.File[name]...)
		}
		return out
	}
}

// anyField walks fields in name order so results are deterministic.
func anyField(form *multipart.Form) []*multipart.FileHeader {
	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*multipart.FileHeader
	for _, name := range names {
		out = append(out, form.File[name]...)
	}
	return out
}

// pick applies strategies in order; the first non-empty match wins.
func pick(form *multipart.Form, strategies []Strategy) (string, []*multipart.FileHeader, []string) {
	tried := make([]string, 0, len(strategies))
	if form == nil {
		for _, s := range strategies {
			tried = append(tried, s.Name)
		}
		return "", nil, tried
	}
	for _, s := range strategies {
		tried = append(tried, s.Name)
		if headers := s.Extract(form); len(headers) > 0 {
			return s.Name, headers, tried
		}
	}
	return "", nil, tried
}
