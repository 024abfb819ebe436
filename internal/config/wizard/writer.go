package wizard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imamik/nodechaos/internal/config"
)

// WriteFile writes the scenario file as YAML with a descriptive header.
func WriteFile(f *config.File, outputPath string) error {
	data, err := config.Marshal(f)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(generateHeader(outputPath))
	sb.WriteString("\n")
	sb.Write(data)

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func generateHeader(outputPath string) string {
	return fmt.Sprintf(`# nodechaos scenario file
# Generated: %s
#
# Check it with:  nodechaos validate -c %s
# Run it with:    nodechaos run -c %s
#
# Nodes matched by exclude_label are never selected. Set kube_check: false
# to skip waiting for the Ready condition.
`, time.Now().Format(time.RFC3339), outputPath, outputPath)
}
