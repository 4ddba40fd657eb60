package lpsn

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/lpsn-scraper/internal/document"
)

// Structural conventions of the LPSN detail page.
const (
	detailPageID     = "detail-page"
	treeSectionClass = "tree-arrow-open"
	treeHeaderClass  = "open"

	notesHeader       = "notes:"
	synonymsHeader    = "synonyms:"
	publicationMarker = "publication:"
)

// Field labels of the detail page.
const (
	LabelName                = "name"
	LabelTypeStrain          = "type strain"
	LabelSequence            = "16S rRNA gene"
	LabelEtymology           = "etymology"
	LabelValidPublication    = "valid publication"
	LabelOriginalPublication = "original publication"
)

// ExtractField returns the value of the first paragraph of the detail page
// whose text contains "<label>:". Matching is case-insensitive and not
// anchored, so a label that is a substring of another label can match it.
func ExtractField(doc *document.Document, label string) (string, bool) {
	page, ok := doc.FindByID(detailPageID)
	if !ok {
		return "", false
	}
	key := strings.ToLower(label) + ":"
	for _, p := range page.FindByTag("p") {
		text := normalizeBlock(p.Text())
		if !strings.Contains(strings.ToLower(text), key) {
			continue
		}
		prefix := regexp.MustCompile("(?i)" + regexp.QuoteMeta(label+":"))
		return strings.TrimSpace(replaceFirst(prefix, text, "")), true
	}
	return "", false
}

// ExtractAuthor derives the naming authority from the "name" field by
// removing the species display name, optionally quoted.
func ExtractAuthor(doc *document.Document, name string) (string, bool) {
	value, ok := ExtractField(doc, LabelName)
	if !ok {
		return "", false
	}
	displayName := regexp.MustCompile(`"?` + regexp.QuoteMeta(name) + `"?`)
	return strings.TrimSpace(replaceFirst(displayName, value, "")), true
}

// ExtractAccession returns the first token of the 16S rRNA gene field.
func ExtractAccession(doc *document.Document) (string, bool) {
	value, ok := ExtractField(doc, LabelSequence)
	if !ok {
		return "", false
	}
	accession, _, _ := strings.Cut(value, " ")
	return accession, true
}

// ExtractRefs returns the publications listed in the "Notes" tree, in order.
func ExtractRefs(doc *document.Document) []string {
	refs := []string{}
	section, ok := treeSection(doc, notesHeader)
	if !ok {
		return refs
	}
	for _, item := range section.FindByTag("li") {
		ref, ok := afterMarker(collapseSpace(item.Text()), publicationMarker)
		if !ok || ref == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// CollectRefs merges the valid and original publication fields with the
// notes publications, dropping duplicates while keeping first occurrences.
func CollectRefs(doc *document.Document) []string {
	var refs []string
	for _, label := range []string{LabelValidPublication, LabelOriginalPublication} {
		if value, ok := ExtractField(doc, label); ok && value != "" {
			refs = append(refs, value)
		}
	}
	return dedupe(append(refs, ExtractRefs(doc)...))
}

// ExtractSynonyms returns the first link text of every row of the
// "Synonyms" table. Rows without a link or with empty text are skipped.
func ExtractSynonyms(doc *document.Document) []string {
	synonyms := []string{}
	section, ok := treeSection(doc, synonymsHeader)
	if !ok {
		return synonyms
	}
	body, ok := section.FirstByTag("tbody")
	if !ok {
		return synonyms
	}
	for _, row := range body.FindByTag("tr") {
		link, ok := row.FirstByTag("a")
		if !ok {
			continue
		}
		if name := strings.TrimSpace(stripTags(link.Text())); name != "" {
			synonyms = append(synonyms, name)
		}
	}
	return synonyms
}

// treeSection finds the first collapsible section of the detail page whose
// header contains title.
func treeSection(doc *document.Document, title string) (document.Node, bool) {
	page, ok := doc.FindByID(detailPageID)
	if !ok {
		return document.Node{}, false
	}
	for _, section := range page.FindByClass(treeSectionClass) {
		for _, header := range section.FindByClass(treeHeaderClass) {
			if strings.Contains(strings.ToLower(header.Text()), title) {
				return section, true
			}
		}
	}
	return document.Node{}, false
}
