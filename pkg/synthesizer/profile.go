package synthesizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Profile is the raw record the graph returns for one person. The tool
// server does not pin down field types, so accessors tolerate missing
// and mistyped values.
type Profile map[string]any

const (
	maxSkillsShown  = 12
	maxJobsShown    = 2
	maxSchoolsShown = 2
	maxNoteLen      = 140
	maxSummaryLen   = 280
)

// asProfile normalizes the payload shapes the profile tool returns: a
// bare record, or a list holding one record.
func asProfile(payload any) Profile {
	switch v := payload.(type) {
	case map[string]any:
		return Profile(v)
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				return Profile(m)
			}
		}
	}
	return nil
}

// displayName reads the person's name, falling back to a placeholder so
// blank records stay presentable.
func (p Profile) displayName(id int) string {
	if name := p.text("name", "full_name"); name != "" {
		return name
	}
	return fmt.Sprintf("Person %d", id)
}

// formatProfile renders one candidate as the compact block the composing
// prompt embeds.
func formatProfile(id int, p Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s (person_id %d)\n", p.displayName(id), id)

	if headline := p.text("headline"); headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", headline)
	}
	if location := p.text("location"); location != "" {
		fmt.Fprintf(&b, "Location: %s\n", location)
	}

	var traits []string
	if seniority := p.text("seniority"); seniority != "" {
		traits = append(traits, seniority)
	}
	if years := p.scalar("total_experience_years"); years != "" {
		traits = append(traits, years+" years of experience")
	}
	if len(traits) > 0 {
		fmt.Fprintf(&b, "Experience: %s\n", strings.Join(traits, ", "))
	}

	if skills := p.skillNames(); len(skills) > 0 {
		extra := ""
		if len(skills) > maxSkillsShown {
			extra = fmt.Sprintf(" (+%d more)", len(skills)-maxSkillsShown)
			skills = skills[:maxSkillsShown]
		}
		fmt.Fprintf(&b, "Skills: %s%s\n", strings.Join(skills, ", "), extra)
	}

	if jobs := p.recentJobs(); len(jobs) > 0 {
		b.WriteString("Recent roles:\n")
		for _, job := range jobs {
			fmt.Fprintf(&b, "- %s\n", job)
		}
	}
	if schools := p.education(); len(schools) > 0 {
		b.WriteString("Education:\n")
		for _, school := range schools {
			fmt.Fprintf(&b, "- %s\n", school)
		}
	}

	if summary := p.text("summary"); summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", clip(summary, maxSummaryLen))
	}

	var contact []string
	if email := p.text("email"); email != "" {
		contact = append(contact, email)
	}
	if link := p.text("linkedin_url", "linkedin"); link != "" {
		contact = append(contact, link)
	}
	if len(contact) > 0 {
		fmt.Fprintf(&b, "Contact: %s\n", strings.Join(contact, " | "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// record returns the map holding the person's scalar fields. Some
// servers nest them under a "person" key next to the relationship lists.
func (p Profile) record() map[string]any {
	if nested, ok := p["person"].(map[string]any); ok {
		return nested
	}
	return p
}

func (p Profile) text(keys ...string) string {
	for _, source := range []map[string]any{p.record(), p} {
		for _, key := range keys {
			if s, ok := source[key].(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

func (p Profile) scalar(keys ...string) string {
	for _, source := range []map[string]any{p.record(), p} {
		for _, key := range keys {
			if s := scalarString(source[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func (p Profile) list(keys ...string) []any {
	for _, source := range []map[string]any{p, p.record()} {
		for _, key := range keys {
			if items, ok := source[key].([]any); ok {
				return items
			}
		}
	}
	return nil
}

// skillNames reads the skills list, which arrives either as plain
// strings or as records with a skill or name field.
func (p Profile) skillNames() []string {
	var names []string
	for _, item := range p.list("skills") {
		switch v := item.(type) {
		case string:
			if t := strings.TrimSpace(v); t != "" {
				names = append(names, t)
			}
		case map[string]any:
			if s := mapText(v, "skill", "name"); s != "" {
				names = append(names, s)
			}
		}
	}
	return names
}

func (p Profile) recentJobs() []string {
	var jobs []string
	for _, item := range p.list("work_history", "experiences", "work_experience", "jobs") {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if line := formatJob(entry); line != "" {
			jobs = append(jobs, line)
		}
		if len(jobs) == maxJobsShown {
			break
		}
	}
	return jobs
}

func (p Profile) education() []string {
	var schools []string
	for _, item := range p.list("education") {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if line := formatSchool(entry); line != "" {
			schools = append(schools, line)
		}
		if len(schools) == maxSchoolsShown {
			break
		}
	}
	return schools
}

func formatJob(entry map[string]any) string {
	title := mapText(entry, "title", "role")
	company := mapText(entry, "company", "company_name")

	var head string
	switch {
	case title != "" && company != "":
		head = title + " at " + company
	case title != "":
		head = title
	case company != "":
		head = company
	default:
		return ""
	}

	if span := dateSpan(entry, "start_date", "end_date"); span != "" {
		head += " (" + span + ")"
	}
	if note := mapText(entry, "description"); note != "" {
		head += ": " + clip(note, maxNoteLen)
	}
	return head
}

func formatSchool(entry map[string]any) string {
	degree := mapText(entry, "degree")
	field := mapText(entry, "field_of_study", "field")
	institution := mapText(entry, "institution", "school")

	var parts []string
	for _, part := range []string{degree, field, institution} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	head := strings.Join(parts, ", ")
	if span := dateSpan(entry, "start_year", "end_year"); span != "" {
		head += " (" + span + ")"
	}
	return head
}

func dateSpan(entry map[string]any, startKey, endKey string) string {
	start := scalarString(entry[startKey])
	end := scalarString(entry[endKey])
	switch {
	case start != "" && end != "":
		return start + " to " + end
	case start != "":
		return start + " to present"
	case end != "":
		return "until " + end
	}
	return ""
}

func mapText(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := scalarString(entry[key]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case json.Number:
		return n.String()
	}
	return ""
}

// clip collapses whitespace and cuts at the last word boundary under max.
func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
