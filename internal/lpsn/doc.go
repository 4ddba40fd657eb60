// Package lpsn scrapes the LPSN (List of Prokaryotic names with Standing in
// Nomenclature) website. It locates species links on the search page, fetches
// each species detail page and turns its loosely structured paragraphs and
// collapsible "Notes" and "Synonyms" trees into typed records.
//
// The scraper relies on a few structural conventions of the upstream HTML:
// the detail content lives under #detail-page, labelled values are <p>
// blocks of the form "Label: value", and collapsible sections are
// .tree-arrow-open elements whose .open child carries the section title.
package lpsn
