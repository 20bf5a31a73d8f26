package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/sentinelhq/sentinel/pkg/types"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// AllEvents returns every stored event, newest first, ties broken by id.
func (s *Store) AllEvents(ctx context.Context) ([]types.AttackEvent, error) {
	return withReadRetry(ctx, s, func() ([]types.AttackEvent, error) {
		return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM attacks ORDER BY timestamp DESC, id DESC`)
	})
}

// ExportAll serializes every stored event. The output only depends on the stored rows.
func (s *Store) ExportAll(ctx context.Context, format string) ([]byte, error) {
	switch format {
	case FormatJSON, FormatCSV:
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}

	events, err := s.AllEvents(ctx)
	if err != nil {
		return nil, err
	}

	return EncodeEvents(events, format)
}

func EncodeEvents(events []types.AttackEvent, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", err, MarshalFail)
		}

		return out, nil
	case FormatCSV:
		if len(events) == 0 {
			header, err := csvutil.Header(types.AttackEvent{}, "csv")
			if err != nil {
				return nil, fmt.Errorf("%w: %w", err, MarshalFail)
			}

			return []byte(strings.Join(header, ",") + "\n"), nil
		}

		out, err := csvutil.Marshal(events)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", err, MarshalFail)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}
