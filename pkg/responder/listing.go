package responder

import (
	"fmt"
	"html"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

// Sort columns selected by the C query parameter.
const (
	SortByName = "N"
	SortBySize = "S"
	SortByDate = "D"
)

// Sort orders selected by the O query parameter.
const (
	OrderAscending  = "A"
	OrderDescending = "D"
)

// DirectoryEntry is one row of a listing. Entries are transient: built,
// sorted, rendered and discarded within a single request.
type DirectoryEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time

	// row caches the rendered HTML for this entry.
	row string
}

// ListDirectory reads the immediate entries of fsPath, stats each one,
// sorts them by the requested column and order, and renders an HTML table.
//
// urlPath is the request path the listing is served under; it is used for
// hyperlinks and for the parent-directory link, which is omitted at the
// document root ("/"). Column is one of N/S/D (name, size, date; name when
// empty or unrecognized) and order one of A/D (ascending default).
//
// Sorting is stable and total: equal keys fall back to name order, so a
// fixed directory snapshot always renders identically.
func ListDirectory(fsPath, urlPath, column, order string) ([]byte, error) {
	dirEntries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", fsPath, err)
	}

	entries := make([]DirectoryEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			// Entry vanished between ReadDir and Stat; skip it.
			continue
		}
		entries = append(entries, DirectoryEntry{
			Name:    de.Name(),
			IsDir:   de.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sortEntries(entries, column, order)

	return renderListing(urlPath, entries), nil
}

// sortEntries orders entries by the selected column with a name-ascending
// tiebreak for equal keys.
func sortEntries(entries []DirectoryEntry, column, order string) {
	less := func(a, b *DirectoryEntry) bool {
		switch column {
		case SortBySize:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case SortByDate:
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.Before(b.ModTime)
			}
		}
		return a.Name < b.Name
	}

	descending := order == OrderDescending

	sort.SliceStable(entries, func(i, j int) bool {
		if descending {
			// Ties still break name-ascending for a deterministic order.
			switch column {
			case SortBySize:
				if entries[i].Size != entries[j].Size {
					return entries[i].Size > entries[j].Size
				}
				return entries[i].Name < entries[j].Name
			case SortByDate:
				if !entries[i].ModTime.Equal(entries[j].ModTime) {
					return entries[i].ModTime.After(entries[j].ModTime)
				}
				return entries[i].Name < entries[j].Name
			default:
				return entries[i].Name > entries[j].Name
			}
		}
		return less(&entries[i], &entries[j])
	})
}

func renderListing(urlPath string, entries []DirectoryEntry) []byte {
	if !strings.HasSuffix(urlPath, "/") {
		urlPath += "/"
	}
	display := html.EscapeString(urlPath)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>Index of %s</title>\n", display)
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n", display)
	b.WriteString("<table>\n")
	fmt.Fprintf(&b, "<tr><th><a href=\"%s?C=N\">Name</a></th><th><a href=\"%s?C=S\">Size</a></th><th><a href=\"%s?C=D\">Last modified</a></th></tr>\n",
		display, display, display)

	if urlPath != "/" {
		parent := path.Dir(strings.TrimSuffix(urlPath, "/"))
		if parent != "/" {
			parent += "/"
		}
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">Parent Directory</a></td><td>-</td><td>-</td></tr>\n",
			html.EscapeString(parent))
	}

	for i := range entries {
		b.WriteString(entries[i].Row(urlPath))
	}

	b.WriteString("</table>\n</body>\n</html>\n")
	return []byte(b.String())
}

// Row renders (and caches) the HTML table row for the entry.
func (e *DirectoryEntry) Row(urlPath string) string {
	if e.row != "" {
		return e.row
	}

	name := e.Name
	link := urlPath + url.PathEscape(e.Name)
	size := fmt.Sprintf("%d", e.Size)
	if e.IsDir {
		name += "/"
		link += "/"
		size = "-"
	}

	e.row = fmt.Sprintf("<tr><td><a href=\"%s\">%s</a></td><td>%s</td><td>%s</td></tr>\n",
		html.EscapeString(link),
		html.EscapeString(name),
		size,
		e.ModTime.Format("2006-01-02 15:04:05"),
	)
	return e.row
}
