// Package parser reads ctags tag files into tag records.
//
// Both the classic three-column format and the extended format with
// ;" terminated addresses and key:value fields are supported:
//
//	!_TAG_FILE_FORMAT	2	/extended format/
//	fetch	google/video/youtube.js	/^  fetch(url) {$/;"	m	line:12
//	url	google/video/youtube.js	/^  fetch(url) {$/;"	v	scope:12:9-20:3
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.ParseFile("/path/to/project/tags")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, tag := range result.Tags {
//	    fmt.Printf("%s %s:%d\n", tag.Name, tag.FilePath, tag.Line)
//	}
//
// Pseudo tags (lines starting with !_) are collected in result.Pseudo and
// never returned as tags. Tag order follows the file.
//
// # Error Handling
//
// Malformed lines are recorded in result.Errors and skipped, so one bad line
// never stops a project from being indexed. A tag whose only problem is a
// bad extension field is kept. ParseFile only fails when the file cannot be
// read.
package parser
