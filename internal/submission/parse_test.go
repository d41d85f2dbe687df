package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"project_url": "https://github.com/acme/plugin-x",
		"categories": ["Movies", "Utility"],
		"additional_comments": "works great",
		"submitter_id": "12345"
	}`)

	sub, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/plugin-x", sub.ProjectURL)
	assert.Equal(t, "acme", sub.Ref.Owner)
	assert.Equal(t, "plugin-x", sub.Ref.Name)
	assert.Equal(t, []Category{CategoryMovies, CategoryUtility}, sub.Categories)
	assert.Nil(t, sub.ScannerMapping)
	assert.Equal(t, "works great", sub.AdditionalComments)
	assert.Equal(t, "12345", sub.SubmitterID)
}

func TestParse_CommaJoinedCategories(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"project_url": "https://github.com/acme/plugin-x",
		"categories": "Movies, Music, Movies"
	}`)

	sub, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryMovies, CategoryMusic}, sub.Categories, "duplicates removed, order preserved")
}

func TestParse_OtherCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		expectErr string
		check     func(t *testing.T, sub *Submission)
	}{
		{
			name: "other with free text",
			raw: `{
				"project_url": "https://github.com/acme/plugin-x",
				"categories": ["Other"],
				"other_category": "Subtitles"
			}`,
			check: func(t *testing.T, sub *Submission) {
				assert.Equal(t, []Category{CategoryOther}, sub.Categories)
				assert.Equal(t, "Subtitles", sub.OtherCategory)
			},
		},
		{
			name: "only other with empty text parses, validation decides",
			raw: `{
				"project_url": "https://github.com/acme/plugin-x",
				"categories": ["Other"]
			}`,
			check: func(t *testing.T, sub *Submission) {
				assert.Equal(t, []Category{CategoryOther}, sub.Categories)
				assert.Empty(t, sub.OtherCategory)
			},
		},
		{
			name: "whitespace-only other text is absent",
			raw: `{
				"project_url": "https://github.com/acme/plugin-x",
				"categories": ["Movies", "Other"],
				"other_category": "   "
			}`,
			check: func(t *testing.T, sub *Submission) {
				assert.Equal(t, []Category{CategoryMovies, CategoryOther}, sub.Categories)
				assert.Empty(t, sub.OtherCategory)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sub, err := Parse([]byte(tt.raw))
			if tt.expectErr != "" {
				require.Error(t, err)
				var malformedErr *MalformedSubmissionError
				require.ErrorAs(t, err, &malformedErr)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, sub)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		expectErr string
	}{
		{
			name:      "not JSON",
			raw:       `not json at all`,
			expectErr: "not valid JSON",
		},
		{
			name:      "missing project url",
			raw:       `{"categories": ["Movies"]}`,
			expectErr: "project_url",
		},
		{
			name:      "whitespace-only project url",
			raw:       `{"project_url": "   ", "categories": ["Movies"]}`,
			expectErr: "project_url",
		},
		{
			name:      "url without owner/repo",
			raw:       `{"project_url": "https://github.com/acme", "categories": ["Movies"]}`,
			expectErr: "owner/repo",
		},
		{
			name:      "missing categories",
			raw:       `{"project_url": "https://github.com/acme/plugin-x"}`,
			expectErr: "categories",
		},
		{
			name:      "empty category list",
			raw:       `{"project_url": "https://github.com/acme/plugin-x", "categories": []}`,
			expectErr: "at least one category",
		},
		{
			name:      "unknown category",
			raw:       `{"project_url": "https://github.com/acme/plugin-x", "categories": ["Gaming"]}`,
			expectErr: `unknown category "Gaming"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			var malformedErr *MalformedSubmissionError
			require.ErrorAs(t, err, &malformedErr)
			assert.Contains(t, err.Error(), tt.expectErr)
		})
	}
}

func TestParse_ScannerMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		expectErr string
		check     func(t *testing.T, sub *Submission)
	}{
		{
			name: "object form",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": {"Common": [], "Movies": ["Scanners/Movies/scan.py"], "Music": [], "Series": []}
			}`,
			check: func(t *testing.T, sub *Submission) {
				require.NotNil(t, sub.ScannerMapping)
				assert.Equal(t, []string{"Scanners/Movies/scan.py"}, sub.ScannerMapping.Movies)
				assert.Empty(t, sub.ScannerMapping.Common)
			},
		},
		{
			name: "fenced string form",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": "` + "```json\\n{\\\"Common\\\": [], \\\"Movies\\\": [\\\"scan.py\\\"], \\\"Music\\\": [], \\\"Series\\\": []}\\n```" + `"
			}`,
			check: func(t *testing.T, sub *Submission) {
				require.NotNil(t, sub.ScannerMapping)
				assert.Equal(t, []string{"scan.py"}, sub.ScannerMapping.Movies)
			},
		},
		{
			name: "whitespace-only string is absent",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": "   "
			}`,
			check: func(t *testing.T, sub *Submission) {
				assert.Nil(t, sub.ScannerMapping)
			},
		},
		{
			name: "missing bucket",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": {"Movies": ["scan.py"]}
			}`,
			expectErr: "bucket schema",
		},
		{
			name: "unexpected bucket",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": {"Common": [], "Movies": [], "Music": [], "Series": [], "Extras": []}
			}`,
			expectErr: "bucket schema",
		},
		{
			name: "non-string path",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": {"Common": [], "Movies": [42], "Music": [], "Series": []}
			}`,
			expectErr: "bucket schema",
		},
		{
			name: "invalid JSON in string form",
			raw: `{
				"project_url": "https://github.com/acme/plugin-y",
				"categories": ["Movies"],
				"scanner_mapping": "{not json"
			}`,
			expectErr: "not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sub, err := Parse([]byte(tt.raw))
			if tt.expectErr != "" {
				require.Error(t, err)
				var malformedErr *MalformedSubmissionError
				require.ErrorAs(t, err, &malformedErr)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, sub)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		expect string
	}{
		{name: "no fence", in: `{"a": 1}`, expect: `{"a": 1}`},
		{name: "plain fence", in: "```\n{\"a\": 1}\n```", expect: `{"a": 1}`},
		{name: "json tag", in: "```json\n{\"a\": 1}\n```", expect: `{"a": 1}`},
		{name: "uppercase tag", in: "```JSON\n{\"a\": 1}\n```", expect: `{"a": 1}`},
		{name: "surrounding whitespace", in: "  ```json\n{}\n```  ", expect: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, stripCodeFence(tt.in))
		})
	}
}

func TestScannerMapping_AllPaths(t *testing.T) {
	t.Parallel()

	mapping := &ScannerMapping{
		Common: []string{"common.py"},
		Movies: []string{"movies.py", "movies2.py"},
		Series: []string{"series.py"},
	}
	assert.Equal(t, []string{"common.py", "movies.py", "movies2.py", "series.py"}, mapping.AllPaths())
}
