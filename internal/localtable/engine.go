// Package localtable filters, sorts and aggregates record arrays already
// resident in memory, memoizing filter results behind a cheap structural
// digest with an incremental-narrowing fast path.
package localtable

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/pkg/logger"
)

const (
	cacheSoftCap    = 100
	cacheEvictCount = 50
)

// Engine owns one table widget's filter cache. All methods are safe for
// concurrent callers; state is serialized behind a mutex.
type Engine struct {
	mu  sync.Mutex
	log logger.Logger

	// version is the owner-supplied monotonic dataset counter. When it is
	// nonzero it replaces the content-sampling digest in cache keys,
	// eliminating collision risk.
	version uint64

	lastSortKey string

	lastFirst  *model.Record
	lastLast   *model.Record
	lastLen    int
	lastFilter map[string]string
	lastResult []*model.Record

	cache map[string][]*model.Record
	order []string

	scans uint64
}

// New creates an engine for a single data source.
func New(log logger.Logger) *Engine {
	return &Engine{
		log:   log,
		cache: make(map[string][]*model.Record),
	}
}

// Bump increments the dataset version. Owners call it on every mutation of
// the underlying data so cache keys change without content sampling.
func (e *Engine) Bump() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.version++
	e.resetLocked()
}

// Invalidate drops every cached result. Call it whenever the data source is
// replaced; the engine cannot detect in-place mutation on its own.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
}

// ClearFilterCache is an alias kept for callers wired to the table widget's
// historical API.
func (e *Engine) ClearFilterCache() {
	e.Invalidate()
}

func (e *Engine) resetLocked() {
	e.cache = make(map[string][]*model.Record)
	e.order = nil
	e.lastFirst = nil
	e.lastLast = nil
	e.lastLen = 0
	e.lastFilter = nil
	e.lastResult = nil
}

// Scans returns how many filter passes have run, cache hits excluded. Used
// to observe cache effectiveness.
func (e *Engine) Scans() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.scans
}

// DataFiltered applies the per-column filter expressions to data and returns
// the matching subset.
//
// Results are memoized: an exact (dataset digest, filter state) hit returns
// the stored slice without scanning. On a miss, when the dataset is the same
// by reference and the previous filter set is a subset of the current one,
// only the newly added or changed keys are applied to the previous result
// instead of rescanning the full dataset.
func (e *Engine) DataFiltered(data []*model.Record, filters map[string]string) []*model.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(data) == 0 {
		return []*model.Record{}
	}

	key := e.cacheKeyLocked(data, filters)
	if cached, ok := e.cache[key]; ok {
		e.log.Debug().Str("key", key).Msg("local filter cache hit")

		return cached
	}

	active := make(map[string]string, len(filters))
	for k, v := range filters {
		if strings.TrimSpace(v) != "" {
			active[k] = v
		}
	}

	if len(active) == 0 {
		e.rememberLocked(data, nil, data)
		e.storeLocked(key, data)

		return data
	}

	var result []*model.Record
	if e.canReuseLocked(data, active) {
		newKeys := make([]string, 0, len(active))
		for k, v := range active {
			if prev, ok := e.lastFilter[k]; !ok || prev != v {
				newKeys = append(newKeys, k)
			}
		}
		sort.Strings(newKeys)

		result = e.scanLocked(e.lastResult, active, newKeys)
	} else {
		allKeys := make([]string, 0, len(active))
		for k := range active {
			allKeys = append(allKeys, k)
		}
		sort.Strings(allKeys)

		result = e.scanLocked(data, active, allKeys)
	}

	e.rememberLocked(data, active, result)
	e.storeLocked(key, result)

	return result
}

func (e *Engine) scanLocked(rows []*model.Record, filters map[string]string, keys []string) []*model.Record {
	e.scans++

	result := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		matched := true
		for _, k := range keys {
			if !matchRecord(row, k, filters[k]) {
				matched = false

				break
			}
		}
		if matched {
			result = append(result, row)
		}
	}

	return result
}

// canReuseLocked reports whether the previous result can be narrowed
// incrementally: same dataset by reference and no previous filter key was
// removed or changed.
func (e *Engine) canReuseLocked(data []*model.Record, active map[string]string) bool {
	if !e.sameDatasetLocked(data) || e.lastFilter == nil {
		return false
	}

	for k, v := range e.lastFilter {
		if active[k] != v {
			return false
		}
	}

	return true
}

// sameDatasetLocked checks slice identity by length and boundary element
// pointers; it deliberately avoids a deep comparison.
func (e *Engine) sameDatasetLocked(data []*model.Record) bool {
	return len(data) > 0 &&
		e.lastLen == len(data) &&
		e.lastFirst == data[0] &&
		e.lastLast == data[len(data)-1]
}

func (e *Engine) rememberLocked(data []*model.Record, active map[string]string, result []*model.Record) {
	e.lastLen = len(data)
	e.lastFirst = data[0]
	e.lastLast = data[len(data)-1]
	e.lastResult = result

	if active == nil {
		e.lastFilter = nil

		return
	}

	e.lastFilter = make(map[string]string, len(active))
	for k, v := range active {
		e.lastFilter[k] = v
	}
}

func (e *Engine) storeLocked(key string, result []*model.Record) {
	if _, ok := e.cache[key]; !ok {
		e.order = append(e.order, key)
	}
	e.cache[key] = result

	if len(e.order) > cacheSoftCap {
		evicted := e.order[:cacheEvictCount]
		e.order = append([]string(nil), e.order[cacheEvictCount:]...)
		for _, k := range evicted {
			delete(e.cache, k)
		}

		e.log.Debug().Int("evicted", len(evicted)).Msg("local filter cache trimmed")
	}
}

func (e *Engine) cacheKeyLocked(data []*model.Record, filters map[string]string) string {
	var digest string
	if e.version > 0 {
		digest = "v" + strconv.FormatUint(e.version, 10)
	} else {
		digest = datasetDigest(data)
	}

	return "d-" + digest + "-f-" + filterSignature(filters) + "-" + strconv.Itoa(len(data))
}

// Sort orders data in place by key. The first call on a key sorts
// descending; calling again with the same key flips to ascending and forgets
// the key. Only the last sorted key is remembered.
func (e *Engine) Sort(data []*model.Record, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ascending := e.lastSortKey == key

	sort.SliceStable(data, func(i, j int) bool {
		a, _ := data[i].Get(key)
		b, _ := data[j].Get(key)

		an, aNum := numericValue(a)
		bn, bNum := numericValue(b)

		var less bool
		if aNum && bNum {
			less = an < bn
		} else {
			less = strings.Compare(valueString(a), valueString(b)) < 0
		}

		if ascending {
			return less
		}

		return !less && !equalValues(a, b)
	})

	if ascending {
		e.lastSortKey = ""
	} else {
		e.lastSortKey = key
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func equalValues(a, b any) bool {
	return valueString(a) == valueString(b)
}

// Totals sums a column after stripping currency and percent decoration from
// string values. When the first row's cleaned value is not numeric the total
// is 0; rows that fail to parse are skipped rather than poisoning the sum.
func (e *Engine) Totals(data []*model.Record, key string) float64 {
	if len(data) == 0 {
		return 0
	}

	first, _ := data[0].Get(key)
	if _, ok := parseCurrency(first); !ok {
		return 0
	}

	var total float64
	for _, row := range data {
		v, _ := row.Get(key)
		if n, ok := parseCurrency(v); ok {
			total += n
		}
	}

	return total
}

func parseCurrency(v any) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, true
	}

	s, ok := v.(string)
	if !ok {
		return 0, false
	}

	cleaned := strings.NewReplacer("$", "", ",", "", "%", "").Replace(s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(cleaned, 64)

	return n, err == nil
}

// GeneralSearch matches a free-text term against every field of every row
// and returns the indices of rows that match nowhere. An empty term hides
// nothing.
func (e *Engine) GeneralSearch(data []*model.Record, term string) map[int]bool {
	hidden := make(map[int]bool)
	if term == "" || len(data) == 0 {
		return hidden
	}

	needle := strings.ToLower(term)
	for i, row := range data {
		matched := false
		for _, k := range row.Keys() {
			v, _ := row.Get(k)
			if v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(valueString(v)), needle) {
				matched = true

				break
			}
		}
		if !matched {
			hidden[i] = true
		}
	}

	return hidden
}
