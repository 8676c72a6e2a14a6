package docs

import _ "embed"

var (
	//go:embed manifest.md
	ManifestMD string

	//go:embed workflow.md
	WorkflowMD string

	//go:embed troubleshooting.md
	TroubleshootingMD string
)
