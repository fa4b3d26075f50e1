package providers

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/sahilm/fuzzy"
)

// Fuzzy-match scores map into this band so the best local match still ranks
// behind exact/substring title hits but ahead of the neutral default.
const (
	fuzzyScoreWorst  = 0.55
	fuzzyScoreSpread = 0.20
)

// LocalConnector searches files under the configured root directories by
// fuzzy-matching basenames. No network, no tokens: the one failure mode is
// an unreadable directory, which is skipped and logged.
type LocalConnector struct {
	config types.LocalProviderConfig
	search types.SearchConfig
}

// NewLocalConnector creates the filesystem connector.
func NewLocalConnector(config types.LocalProviderConfig, search types.SearchConfig) *LocalConnector {
	return &LocalConnector{config: config, search: search}
}

func (l *LocalConnector) Provider() types.Provider {
	return types.ProviderLocal
}

// Search enumerates the roots and fuzzy-ranks basenames against the query.
// An empty query returns the enumeration head unranked, as a plain listing.
func (l *LocalConnector) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	files := l.enumerate(ctx)

	if query == "" {
		results := make([]types.SearchResult, 0, len(files))
		for _, f := range files {
			results = append(results, f.toResult(0))
		}
		return results, nil
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}

	// fuzzy.Find returns matches sorted best-first; scores are relative, so
	// normalize against the best hit of this batch.
	matches := fuzzy.Find(query, names)
	if len(matches) > l.perSourceLimit() {
		matches = matches[:l.perSourceLimit()]
	}
	if len(matches) == 0 {
		return nil, nil
	}

	best := matches[0].Score
	results := make([]types.SearchResult, 0, len(matches))
	for _, m := range matches {
		rel := 0.0
		if best > 0 && m.Score > 0 {
			rel = float64(m.Score) / float64(best)
		}
		results = append(results, files[m.Index].toResult(fuzzyScoreWorst-fuzzyScoreSpread*rel))
	}
	return results, nil
}

func (l *LocalConnector) perSourceLimit() int {
	if l.search.PerSourceLimit > 0 {
		return l.search.PerSourceLimit
	}
	return 100
}

func (l *LocalConnector) listLimit() int {
	if l.search.LocalListLimit > 0 {
		return l.search.LocalListLimit
	}
	return 2000
}

type localFile struct {
	path     string
	name     string
	size     int64
	modified int64 // epoch millis
}

func (f localFile) toResult(score float64) types.SearchResult {
	size := f.size
	modified := f.modified
	return types.SearchResult{
		ID:       "local:" + f.path,
		Title:    f.name,
		Source:   types.SourceLocal,
		URL:      f.path,
		Size:     &size,
		Modified: &modified,
		Score:    score,
	}
}

// enumerate walks every root and collects up to the listing limit of
// regular files, honoring exclude globs and the symlink policy.
func (l *LocalConnector) enumerate(ctx context.Context) []localFile {
	limit := l.listLimit()
	files := make([]localFile, 0, 256)
	visited := make(map[string]struct{})

	for _, root := range l.config.Roots {
		if len(files) >= limit {
			break
		}
		l.walkRoot(ctx, root, visited, &files, limit)
	}
	return files
}

func (l *LocalConnector) walkRoot(ctx context.Context, root string, visited map[string]struct{}, files *[]localFile, limit int) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("skipping unreadable search root")
		return
	}
	if _, seen := visited[resolved]; seen {
		return
	}
	visited[resolved] = struct{}{}

	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if len(*files) >= limit {
			return filepath.SkipAll
		}

		// A configured root is searched even when a glob would match its
		// own name; exclusion applies to what the walk finds inside.
		if path != resolved && l.excluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !l.config.FollowSymlinks {
				return nil
			}
			// WalkDir never descends into symlinked directories itself;
			// recurse manually with cycle protection.
			info, statErr := os.Stat(path)
			if statErr != nil {
				return nil
			}
			if info.IsDir() {
				l.walkRoot(ctx, path, visited, files, limit)
				return nil
			}
			*files = append(*files, localFile{
				path:     path,
				name:     d.Name(),
				size:     info.Size(),
				modified: info.ModTime().UnixMilli(),
			})
			return nil
		}

		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		*files = append(*files, localFile{
			path:     path,
			name:     d.Name(),
			size:     info.Size(),
			modified: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("walk failed")
	}
}

// excluded matches an entry basename against the configured globs.
func (l *LocalConnector) excluded(name string) bool {
	for _, glob := range l.config.ExcludeGlobs {
		if ok, _ := filepath.Match(glob, name); ok {
			return true
		}
	}
	return false
}

var _ sources.Connector = (*LocalConnector)(nil)
