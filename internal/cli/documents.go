package cli

import (
	"context"
	"fmt"
	"sort"

	loamAdapter "github.com/aretw0/dialogic/pkg/adapters/loam"
)

// DomainDocuments groups the schema and content documents of dir by the
// domain name they declare.
func DomainDocuments(ctx context.Context, dir string) (map[string][]string, error) {
	w, err := loamAdapter.Open(dir)
	if err != nil {
		return nil, err
	}
	docs, err := w.Documents(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, d := range docs {
		if d.Name == "" {
			return nil, fmt.Errorf("document %s declares no domain name", d.ID)
		}
		out[d.Name] = append(out[d.Name], d.ID)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out, nil
}
