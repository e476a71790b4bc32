package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/studymate/studyplan-api/internal/dto"
	"github.com/studymate/studyplan-api/internal/models"
)

const (
	maxTopicTitleLen    = 200
	maxSourceContextLen = 100

	minWeight = 1
	maxWeight = 5
	defWeight = 3

	minEstimatedHours = 0.5
	maxEstimatedHours = 5.0
	defEstimatedHours = 1.0
)

var topicKeyRe = regexp.MustCompile(`^t\d{2,}$`)

// SanitizeResult is what survives sanitization plus what was fixed on the
// way.
type SanitizeResult struct {
	Topics              []models.Topic
	Notes               []string
	TruncatedDueToQuota bool
}

// SanitizeTopics normalises raw model output into valid topics. Topics
// without a usable title are dropped, duplicate titles are discarded, every
// numeric field is coerced and clamped, keys are made unique, and
// prerequisite references are restricted to keys present in the surviving
// batch. Order is preserved. A negative quota means unmetered.
func SanitizeTopics(raw []dto.RawTopic, maxTopics, quota int) SanitizeResult {
	var result SanitizeResult
	if maxTopics > 0 && len(raw) > maxTopics {
		result.Notes = append(result.Notes, fmt.Sprintf("model returned %d topics, keeping the first %d", len(raw), maxTopics))
		raw = raw[:maxTopics]
	}

	seenKeys := make(map[string]bool, len(raw))
	seenTitles := make(map[string]bool, len(raw))
	for i, rt := range raw {
		title := strings.TrimSpace(rt.Title)
		if title == "" {
			result.Notes = append(result.Notes, fmt.Sprintf("dropped topic %d: empty title", i+1))
			continue
		}
		if len(title) > maxTopicTitleLen {
			title = title[:maxTopicTitleLen]
			result.Notes = append(result.Notes, fmt.Sprintf("truncated title of %q", rt.TopicKey))
		}
		if seenTitles[strings.ToLower(title)] {
			result.Notes = append(result.Notes, fmt.Sprintf("dropped duplicate topic %q", title))
			continue
		}
		if quota >= 0 && len(result.Topics) >= quota {
			result.TruncatedDueToQuota = true
			result.Notes = append(result.Notes, "remaining topics dropped: per-user topic quota reached")
			break
		}
		seenTitles[strings.ToLower(title)] = true

		key := strings.TrimSpace(rt.TopicKey)
		if !topicKeyRe.MatchString(key) || seenKeys[key] {
			key = uniqueTopicKey(seenKeys, len(result.Topics))
		}
		seenKeys[key] = true

		topic := models.Topic{
			TopicKey:         key,
			Title:            title,
			DifficultyWeight: coerceWeight(rt.DifficultyWeight),
			ExamImportance:   coerceWeight(rt.ExamImportance),
			EstimatedHours:   coerceHours(rt.EstimatedHours),
			Confidence:       coerceConfidence(rt.Confidence),
			Prerequisites:    pq.StringArray{},
			PrereqKeys:       rt.Prerequisites,
		}
		if notes := strings.TrimSpace(rt.Notes); notes != "" {
			topic.Notes = &notes
		}
		if page, ok := coerceInt(rt.SourcePage); ok && page > 0 {
			topic.SourcePage = &page
		}
		if sc := strings.TrimSpace(rt.SourceContext); sc != "" {
			if len(sc) > maxSourceContextLen {
				sc = sc[:maxSourceContextLen]
			}
			topic.SourceContext = &sc
		}
		result.Topics = append(result.Topics, topic)
	}

	// Second pass once the surviving key set is known.
	for i := range result.Topics {
		result.Topics[i].PrereqKeys = filterPrereqKeys(result.Topics[i].TopicKey, result.Topics[i].PrereqKeys, seenKeys)
	}
	return result
}

func uniqueTopicKey(seen map[string]bool, index int) string {
	key := fmt.Sprintf("t%02d", index+1)
	if !seen[key] {
		return key
	}
	return fmt.Sprintf("%s_%d", key, time.Now().UnixNano())
}

func filterPrereqKeys(self string, keys []string, known map[string]bool) []string {
	var out []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || k == self || !known[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func coerceWeight(v any) int {
	n, ok := coerceInt(v)
	if !ok {
		return defWeight
	}
	if n < minWeight {
		return minWeight
	}
	if n > maxWeight {
		return maxWeight
	}
	return n
}

func coerceHours(v any) float64 {
	f, ok := coerceFloat(v)
	if !ok {
		return defEstimatedHours
	}
	if f < minEstimatedHours {
		return minEstimatedHours
	}
	if f > maxEstimatedHours {
		return maxEstimatedHours
	}
	return f
}

func coerceConfidence(v string) models.ConfidenceLevel {
	switch models.ConfidenceLevel(strings.ToLower(strings.TrimSpace(v))) {
	case models.ConfidenceHigh:
		return models.ConfidenceHigh
	case models.ConfidenceLow:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// CycleReport describes the prerequisite edges removed to make the graph
// acyclic.
type CycleReport struct {
	Detected bool
	Cycles   []string
}

// DetectAndBreakCycles makes the prerequisite graph a DAG by removing one
// back edge per cycle found. Traversal is iterative and visits topics in
// key order so runs are deterministic.
func DetectAndBreakCycles(topics []models.Topic) CycleReport {
	index := make(map[string]int, len(topics))
	for i := range topics {
		index[topics[i].TopicKey] = i
	}

	keys := make([]string, 0, len(topics))
	for i := range topics {
		keys = append(keys, topics[i].TopicKey)
	}
	sort.Strings(keys)

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(topics))
	var report CycleReport

	type frame struct {
		key  string
		next int
	}

	for _, start := range keys {
		if state[start] != unvisited {
			continue
		}
		stack := []frame{{key: start}}
		state[start] = inStack
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			topic := &topics[index[top.key]]
			if top.next >= len(topic.PrereqKeys) {
				state[top.key] = done
				stack = stack[:len(stack)-1]
				continue
			}
			dep := topic.PrereqKeys[top.next]
			top.next++
			switch state[dep] {
			case unvisited:
				state[dep] = inStack
				stack = append(stack, frame{key: dep})
			case inStack:
				// Back edge: drop this single prerequisite and move on.
				topic.PrereqKeys = removeKey(topic.PrereqKeys, dep)
				top.next--
				report.Detected = true
				report.Cycles = append(report.Cycles, fmt.Sprintf("%s -> %s", top.key, dep))
			}
		}
	}
	return report
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

// AssignStableIdentifiers gives every topic a UUID and resolves
// prerequisite keys to those identifiers. Keys pointing outside the batch
// were already filtered, so resolution never dangles.
func AssignStableIdentifiers(topics []models.Topic) {
	ids := make(map[string]string, len(topics))
	for i := range topics {
		if topics[i].ID == "" {
			topics[i].ID = uuid.NewString()
		}
		ids[topics[i].TopicKey] = topics[i].ID
	}
	for i := range topics {
		resolved := make(pq.StringArray, 0, len(topics[i].PrereqKeys))
		for _, key := range topics[i].PrereqKeys {
			if id, ok := ids[key]; ok {
				resolved = append(resolved, id)
			}
		}
		topics[i].Prerequisites = resolved
	}
}
