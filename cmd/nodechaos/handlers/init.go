package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/config/wizard"
	"github.com/imamik/nodechaos/internal/util/keygen"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// runWizard runs the interactive wizard.
	runWizard = wizard.RunWizard

	// writeScenario writes the scenario file.
	writeScenario = wizard.WriteFile

	// generateKeyPair creates the SSH key pair for remote actions.
	generateKeyPair = keygen.GenerateEd25519KeyPair
)

// Init runs the scenario wizard and writes the result to outputPath.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	file, err := wizard.BuildFile(result)
	if err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}

	var publicKeyPath string
	if result.GenerateKey && result.NeedsRemote() {
		publicKeyPath, err = writeKeyPair(result.SSHKeyPath)
		if err != nil {
			return err
		}
	}

	if err := writeScenario(file, outputPath); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}

	printInitSuccess(outputPath, file, publicKeyPath)
	return nil
}

// writeKeyPair generates a key pair at path and returns the public key path.
func writeKeyPair(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	pair, err := generateKeyPair()
	if err != nil {
		return "", err
	}
	if err := pair.Write(path); err != nil {
		return "", err
	}
	return path + ".pub", nil
}

func printWelcome() {
	fmt.Println()
	fmt.Println("nodechaos - node lifecycle chaos for Kubernetes")
	fmt.Println("===============================================")
	fmt.Println()
	fmt.Println("This wizard creates a scenario file with one entry.")
	fmt.Println("Add more entries to node_scenarios by hand to chain scenarios.")
	fmt.Println()
}

func printInitSuccess(outputPath string, file *config.File, publicKeyPath string) {
	e := file.NodeScenarios[0]

	fmt.Println()
	fmt.Println("Scenario saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Scenario Summary")
	fmt.Println("----------------")
	fmt.Printf("  Cloud:    %s\n", e.Cloud())
	fmt.Printf("  Targets:  %s\n", describeTarget(&e))
	fmt.Printf("  Actions:  %v\n", e.Actions)
	fmt.Printf("  Runs:     %d (parallel: %t)\n", e.Runs, e.Parallel)
	fmt.Printf("  Timeout:  %s\n", e.Timeout())
	fmt.Println()

	if publicKeyPath != "" {
		fmt.Println("SSH Key")
		fmt.Println("-------")
		fmt.Printf("  Authorize %s on every target node.\n", publicKeyPath)
		fmt.Println()
	}

	fmt.Println("Next Steps")
	fmt.Println("----------")
	switch e.Cloud() {
	case config.CloudHetzner:
		fmt.Println("  1. export HCLOUD_TOKEN=<your-token>")
	case config.CloudAWS:
		fmt.Println("  1. Make AWS credentials available (env, profile or instance role)")
	default:
		fmt.Println("  1. Make sure the nodes are reachable over SSH")
	}
	fmt.Printf("  2. nodechaos validate -c %s\n", outputPath)
	fmt.Printf("  3. nodechaos run -c %s\n", outputPath)
	fmt.Println()
}
