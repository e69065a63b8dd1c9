package extract

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/graph"
)

// Heuristic is the pattern-based extractor. It is deterministic, makes no
// external calls, and always runs regardless of LLM availability.
type Heuristic struct{}

// NewHeuristic creates the pattern-based extractor
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var (
	urlRegex     = regexp.MustCompile(`https?://[^\s<>"')]+`)
	emailRegex   = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	mentionRegex = regexp.MustCompile(`(?:^|\s)@(\w{2,32})`)
	capSeqRegex  = regexp.MustCompile(`\b[A-Z][A-Za-z0-9'&.-]*(?: [A-Z][A-Za-z0-9'&.-]*)+\b`)
	acronymRegex = regexp.MustCompile(`^[A-Z]{2,6}$`)

	usesRegex    = regexp.MustCompile(`\b([A-Z][\w'-]*(?: [A-Z][\w'-]*)*) uses ([\w'+#-]+(?: [\w'+#-]+){0,3})`)
	worksOnRegex = regexp.MustCompile(`\b([A-Z][\w'-]*(?: [A-Z][\w'-]*)*) works on ([\w'+#-]+(?: [\w'+#-]+){0,3})`)
	isRegex      = regexp.MustCompile(`\b([A-Z][\w'-]*(?: [A-Z][\w'-]*)*) is (?:a |an |the )?([\w'+#-]+(?: [\w'+#-]+){0,3})`)
)

// knownExtensions marks path-like tokens as files
var knownExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".rs": true, ".rb": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".md": true, ".txt": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".sql": true, ".sh": true, ".css": true, ".html": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".csv": true, ".png": true, ".jpg": true, ".svg": true,
}

// typeKeywords drives the capitalized-phrase type lookup. Matched against
// individual lower-cased words of the phrase.
var typeKeywords = map[string]graph.EntityType{
	// organization
	"inc": graph.EntityOrganization, "llc": graph.EntityOrganization,
	"corp": graph.EntityOrganization, "corporation": graph.EntityOrganization,
	"ltd": graph.EntityOrganization, "gmbh": graph.EntityOrganization,
	"university": graph.EntityOrganization, "institute": graph.EntityOrganization,
	"labs": graph.EntityOrganization, "foundation": graph.EntityOrganization,
	"bank": graph.EntityOrganization, "company": graph.EntityOrganization,
	// tool
	"studio": graph.EntityTool, "editor": graph.EntityTool, "sdk": graph.EntityTool,
	"cli": graph.EntityTool, "api": graph.EntityTool, "framework": graph.EntityTool,
	"compiler": graph.EntityTool, "app": graph.EntityTool,
	// project
	"project": graph.EntityProject, "initiative": graph.EntityProject,
	"roadmap": graph.EntityProject, "sprint": graph.EntityProject,
	"milestone": graph.EntityProject,
	// concept
	"theory": graph.EntityConcept, "method": graph.EntityConcept,
	"algorithm": graph.EntityConcept, "pattern": graph.EntityConcept,
	"principle": graph.EntityConcept, "architecture": graph.EntityConcept,
	// location
	"street": graph.EntityLocation, "avenue": graph.EntityLocation,
	"valley": graph.EntityLocation, "beach": graph.EntityLocation,
	"airport": graph.EntityLocation, "station": graph.EntityLocation,
	"office": graph.EntityLocation, "park": graph.EntityLocation,
	// website
	"blog": graph.EntityWebsite, "wiki": graph.EntityWebsite, "docs": graph.EntityWebsite,
	// file
	"report": graph.EntityFile, "spec": graph.EntityFile, "document": graph.EntityFile,
	// event
	"meeting": graph.EntityEvent, "conference": graph.EntityEvent,
	"summit": graph.EntityEvent, "standup": graph.EntityEvent,
	"review": graph.EntityEvent, "launch": graph.EntityEvent,
	// person titles
	"mr": graph.EntityPerson, "mrs": graph.EntityPerson, "ms": graph.EntityPerson,
	"dr": graph.EntityPerson, "prof": graph.EntityPerson,
}

var corpSuffixes = map[string]bool{
	"inc": true, "llc": true, "corp": true, "ltd": true, "gmbh": true,
	"co": true, "ag": true, "sa": true,
}

// relationKeywords maps predicate words to a coarse relation type
var relationKeywords = map[string]graph.RelationType{
	"works": graph.RelProfessional, "colleague": graph.RelProfessional,
	"manager": graph.RelProfessional, "hired": graph.RelProfessional,
	"reports": graph.RelProfessional, "founded": graph.RelProfessional,
	"friend": graph.RelSocial, "knows": graph.RelSocial,
	"married": graph.RelSocial, "met": graph.RelSocial,
	"family": graph.RelSocial,
	"uses": graph.RelTechnical, "built": graph.RelTechnical,
	"wrote": graph.RelTechnical, "runs": graph.RelTechnical,
	"deployed": graph.RelTechnical, "maintains": graph.RelTechnical,
	"paid": graph.RelFinancial, "owes": graph.RelFinancial,
	"bought": graph.RelFinancial, "sold": graph.RelFinancial,
	"invested": graph.RelFinancial,
	"located": graph.RelSpatial, "near": graph.RelSpatial,
	"lives": graph.RelSpatial, "moved": graph.RelSpatial,
	"before": graph.RelTemporal, "after": graph.RelTemporal,
	"during": graph.RelTemporal, "scheduled": graph.RelTemporal,
	"causes": graph.RelCausal, "because": graph.RelCausal,
	"leads": graph.RelCausal, "blocks": graph.RelCausal,
}

// ClassifyRelation maps a predicate string to a coarse relation type
func ClassifyRelation(predicate string) graph.RelationType {
	for _, word := range strings.Fields(strings.ToLower(predicate)) {
		if t, ok := relationKeywords[strings.Trim(word, ".,!?;:")]; ok {
			return t
		}
	}
	return graph.RelOther
}

// Extract runs all pattern scans over the passed events. Entities discovered
// more than once are coalesced by lower-cased name; edges are created only
// between entities discovered in the same event.
func (h *Heuristic) Extract(events []graph.Event) *partial {
	p := newPartial()

	for _, ev := range events {
		discovered := make(map[string]*graph.Entity) // this event's entities, by lower name

		add := func(e *graph.Entity) {
			e.ID = uuid.NewString()
			ts := eventTime(ev)
			e.FirstSeen = ts
			e.LastSeen = ts
			e.SourceEventIDs = []string{ev.ID}
			merged := p.addEntity(e)
			discovered[lowerKey(merged.Name)] = merged
		}

		for _, raw := range urlRegex.FindAllString(ev.Content, -1) {
			raw = strings.TrimRight(raw, ".,;:!?")
			name := raw
			if u, err := url.Parse(raw); err == nil && u.Host != "" {
				name = u.Host
			}
			add(&graph.Entity{
				Name:       name,
				EntityType: graph.EntityWebsite,
				Aliases:    []string{raw},
				Importance: 0.4,
			})
		}

		for _, token := range strings.Fields(ev.Content) {
			token = strings.Trim(token, ".,;:!?()\"'")
			if !strings.Contains(token, "/") {
				continue
			}
			if !knownExtensions[strings.ToLower(path.Ext(token))] {
				continue
			}
			add(&graph.Entity{
				Name:       path.Base(token),
				EntityType: graph.EntityFile,
				Aliases:    []string{token},
				Importance: 0.4,
			})
		}

		for _, email := range emailRegex.FindAllString(ev.Content, -1) {
			local := email[:strings.Index(email, "@")]
			add(&graph.Entity{
				Name:       local,
				EntityType: graph.EntityPerson,
				Aliases:    []string{email},
				Importance: 0.6,
			})
		}

		for _, m := range mentionRegex.FindAllStringSubmatch(ev.Content, -1) {
			add(&graph.Entity{
				Name:       m[1],
				EntityType: graph.EntityPerson,
				Aliases:    []string{"@" + m[1]},
				Importance: 0.6,
			})
		}

		for _, phrase := range capSeqRegex.FindAllString(ev.Content, -1) {
			phrase = trimStopwords(strings.TrimRight(phrase, ".-"))
			if strings.Count(phrase, " ") < 1 {
				continue
			}
			add(&graph.Entity{
				Name:       phrase,
				EntityType: classifyPhrase(phrase),
				Importance: 0.5,
			})
		}

		facts := h.extractFacts(ev)
		p.facts = append(p.facts, facts...)

		// Fact-derived edges, only between entities co-discovered in this event
		for _, f := range facts {
			src, ok := discovered[lowerKey(f.Subject)]
			if !ok {
				continue
			}
			dst, ok := discovered[lowerKey(f.Object)]
			if !ok || src == dst {
				continue
			}
			p.edges = append(p.edges, &graph.Edge{
				ID:           uuid.NewString(),
				SourceID:     src.ID,
				TargetID:     dst.ID,
				Relation:     f.Predicate,
				RelationType: ClassifyRelation(f.Predicate),
				Strength:     f.Confidence,
				IsCurrent:    true,
				Evidence:     []string{ev.ID},
				CreatedAt:    ev.Timestamp,
			})
		}
	}

	return p
}

// capStopwords are capitalized sentence-position words that start a matched
// sequence without belonging to the name
var capStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"my": true, "our": true, "your": true, "his": true, "her": true,
	"i": true, "we": true, "it": true,
}

// trimStopwords drops leading stopwords from a capitalized sequence
func trimStopwords(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 && capStopwords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// classifyPhrase types a capitalized multi-word phrase: keyword table first,
// then structural fallbacks.
func classifyPhrase(phrase string) graph.EntityType {
	words := strings.Fields(phrase)
	for _, w := range words {
		key := strings.ToLower(strings.Trim(w, ".,"))
		if t, ok := typeKeywords[key]; ok {
			return t
		}
	}

	last := strings.ToLower(strings.Trim(words[len(words)-1], "."))
	if corpSuffixes[last] {
		return graph.EntityOrganization
	}
	for _, w := range words {
		if acronymRegex.MatchString(w) {
			return graph.EntityOrganization
		}
	}
	if len(words) == 2 && isNameLike(words[0]) && isNameLike(words[1]) {
		return graph.EntityPerson
	}
	return graph.EntityOther
}

// isNameLike reports whether a word looks like a personal name:
// one capital followed by lower case.
func isNameLike(w string) bool {
	runes := []rune(w)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLower(r) && r != '\'' && r != '-' {
			return false
		}
	}
	return true
}

// extractFacts scans for the three supported phrase patterns
func (h *Heuristic) extractFacts(ev graph.Event) []*graph.Fact {
	var facts []*graph.Fact

	addFact := func(subject, predicate, object, factType string, confidence float64) {
		object = strings.TrimRight(strings.TrimSpace(object), ".,;:!?")
		if subject == "" || object == "" {
			return
		}
		facts = append(facts, &graph.Fact{
			ID:             uuid.NewString(),
			Subject:        subject,
			Predicate:      predicate,
			Object:         object,
			FactType:       factType,
			Confidence:     confidence,
			Strength:       confidence,
			ValidFrom:      ev.Timestamp,
			SourceEventIDs: []string{ev.ID},
		})
	}

	for _, m := range usesRegex.FindAllStringSubmatch(ev.Content, -1) {
		addFact(m[1], "uses", m[2], "usage", 0.7)
	}
	for _, m := range worksOnRegex.FindAllStringSubmatch(ev.Content, -1) {
		addFact(m[1], "works on", m[2], "work", 0.7)
	}
	for _, m := range isRegex.FindAllStringSubmatch(ev.Content, -1) {
		addFact(m[1], "is", m[2], "attribute", 0.6)
	}

	return facts
}

func lowerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func unionFold(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			key := strings.ToLower(s)
			if s != "" && !seen[key] {
				seen[key] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// eventTime falls back to now for events without a timestamp
func eventTime(ev graph.Event) time.Time {
	if ev.Timestamp.IsZero() {
		return time.Now()
	}
	return ev.Timestamp
}
