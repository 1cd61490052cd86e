package extractor

import (
	"fmt"
	"strings"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// SplitFilename splits a media label on its last dot into name and extension.
//
// Under the lenient policy a label without a dot is all name and the
// extension is empty. The strict policy rejects that, and a trailing dot,
// with utils.ErrMalformedMetadata.
func SplitFilename(raw, policy string) (string, string, error) {
	i := strings.LastIndex(raw, ".")
	if i < 0 {
		if policy == config.ExtensionPolicyStrict {
			return "", "", fmt.Errorf("%w: label %q has no file extension", utils.ErrMalformedMetadata, raw)
		}
		return raw, "", nil
	}
	name, ext := raw[:i], raw[i+1:]
	if ext == "" && policy == config.ExtensionPolicyStrict {
		return "", "", fmt.Errorf("%w: label %q has an empty file extension", utils.ErrMalformedMetadata, raw)
	}
	return name, ext, nil
}
