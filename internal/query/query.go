// Package query turns free-text search input plus filters into the boolean
// query string the engine consumes.
//
// Text is lower-cased and trimmed. Unquoted text in relevance mode expands
// into every contiguous token run, longest first, so exact multi-word runs
// outrank scattered single-token matches. Date-sorted searches skip the
// expansion.
package query

import (
	"strings"
)

// AttachmentHint is the file-type hint meaning "any attachment".
const AttachmentHint = "attachment"

// ConstructQuery builds the engine query. It returns "" when there is
// nothing to search for; callers short-circuit on that.
func ConstructQuery(text string, senderIDs, threadIDs []string, fileType string, sortByDate bool) string {
	searchText := strings.ToLower(strings.TrimSpace(text))

	textQuery := ""
	if searchText != "" {
		textQuery = TextQuery(searchText, sortByDate)
	}

	tagQuery := ""
	if tags := HashTags(searchText); len(tags) > 0 {
		tagQuery = " OR tags:(" + quoteAll(tags) + ")"
	}

	attachmentQuery := ""
	if fileType != "" {
		if strings.EqualFold(fileType, AttachmentHint) {
			attachmentQuery = "(hasfiles:true)"
		} else {
			attachmentQuery = "(filetype:(" + fileType + "))"
		}
	}

	q := ""
	if searchText != "" {
		q = "((text:(" + textQuery + "))" + tagQuery
		if attachmentQuery != "" {
			q += " OR (filename:(" + searchText + "))"
		}
		q += ")"
	}

	q = AppendFilter(q, "senderId", senderIDs)
	q = AppendFilter(q, "threadId", threadIDs)

	switch {
	case q == "":
		return attachmentQuery
	case attachmentQuery != "":
		return q + " AND " + attachmentQuery
	default:
		return q
	}
}

// TextQuery builds the text clause body.
//
// Input containing a double quote is a user phrase search and is returned
// trimmed and lower-cased. With sortByDate the tokens are space-joined.
// Otherwise all n(n+1)/2 contiguous n-grams are emitted quoted, ordered by
// descending length then ascending start offset:
//
//	a b c -> "a b c" "a b" "b c" "a" "b" "c"
func TextQuery(text string, sortByDate bool) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(text, `"`) {
		return normalized
	}

	tokens := tokenize(normalized)
	if sortByDate {
		return strings.Join(tokens, " ")
	}

	var sb strings.Builder
	for size := len(tokens); size > 0; size-- {
		for start := 0; start+size <= len(tokens); start++ {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte('"')
			sb.WriteString(strings.Join(tokens[start:start+size], " "))
			sb.WriteByte('"')
		}
	}
	return sb.String()
}

// HashTags returns the whitespace-separated tokens of text starting with
// '#' or '$', lower-cased. Tags may contain any other characters.
func HashTags(text string) []string {
	var tags []string
	for _, tok := range tokenize(strings.ToLower(text)) {
		if strings.HasPrefix(tok, "#") || strings.HasPrefix(tok, "$") {
			tags = append(tags, tok)
		}
	}
	return tags
}

// AppendFilter ANDs a field:("v1" "v2" ) clause onto q. Empty values leave q
// unchanged; an empty q yields the clause alone.
func AppendFilter(q, field string, values []string) string {
	if len(values) == 0 {
		return q
	}

	clause := "(" + field + ":(" + quoteAll(values) + "))"
	if q == "" {
		return clause
	}
	return q + " AND " + clause
}

// quoteAll renders values as `"v1" "v2" ` with the trailing space the engine
// grammar has always accepted.
func quoteAll(values []string) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteByte('"')
		sb.WriteString(v)
		sb.WriteString(`" `)
	}
	return sb.String()
}

func tokenize(s string) []string {
	return strings.Fields(s)
}
