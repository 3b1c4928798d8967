package localtable

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/enlacemx/recordkit/internal/domain/model"
)

const (
	digestHeadRows = 3
	digestTailRows = 2
	digestRowKeys  = 5
)

// datasetDigest fingerprints a dataset cheaply: its length, snapshots of the
// first three and last two rows (first five fields each) and the sorted
// field-name set of the first row. Two datasets sharing the digest are
// assumed identical; this is a sampling signal, not a deep-equality check.
func datasetDigest(data []*model.Record) string {
	if len(data) == 0 {
		return "empty"
	}

	var b strings.Builder
	b.WriteString("len:")
	b.WriteString(strconv.Itoa(len(data)))

	head := data
	if len(head) > digestHeadRows {
		head = head[:digestHeadRows]
	}
	for _, row := range head {
		b.WriteString(";h:")
		writeRowSnapshot(&b, row)
	}

	tail := data
	if len(tail) > digestTailRows {
		tail = tail[len(tail)-digestTailRows:]
	}
	for _, row := range tail {
		b.WriteString(";t:")
		writeRowSnapshot(&b, row)
	}

	fields := data[0].Keys()
	sort.Strings(fields)
	b.WriteString(";f:")
	b.WriteString(strings.Join(fields, ","))

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 36)
}

func writeRowSnapshot(b *strings.Builder, row *model.Record) {
	if row == nil {
		b.WriteString("nil-row")

		return
	}

	keys := row.Keys()
	if len(keys) > digestRowKeys {
		keys = keys[:digestRowKeys]
	}
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		v, _ := row.Get(k)
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(valueString(v))
	}
}

// filterSignature serializes a filter map deterministically for cache keys.
func filterSignature(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
	}

	return b.String()
}
