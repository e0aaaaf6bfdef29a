package model

import "fmt"

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

// Tokenizer files published with every OpenAI CLIP checkpoint.
const (
	VocabFile  = "vocab.json"
	MergesFile = "merges.txt"
)

// clipRepos share one tokenizer; any of them can serve the files.
var clipRepos = []string{
	"openai/clip-vit-base-patch32",
	"openai/clip-vit-base-patch16",
	"openai/clip-vit-large-patch14",
	"openai/clip-vit-large-patch14-336",
}

func PinnedManifest(repo string) (Manifest, error) {
	for _, r := range clipRepos {
		if r != repo {
			continue
		}
		// The tokenizer files are plain git blobs, so HF metadata rarely
		// carries a sha256. The first verified download is recorded in the
		// lock manifest and later runs check against it.
		return Manifest{
			Repo: repo,
			Files: []ModelFile{
				{Filename: VocabFile, Revision: "main"},
				{Filename: MergesFile, Revision: "main"},
			},
		}, nil
	}
	return Manifest{}, fmt.Errorf("no pinned manifest for repo %q", repo)
}
