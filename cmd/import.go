package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"library-circulation/library"
)

// manifest is the YAML file read by the import command.
type manifest struct {
	Books []manifestBook `yaml:"books"`
}

type manifestBook struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	ISBN   string `yaml:"isbn"`
	Copies int    `yaml:"copies"`
}

func readManifest(r io.Reader) (manifest, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return m, nil
		}
		return manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Add books listed in a YAML manifest",
		Example: `  library import books.yaml

  # books.yaml
  books:
    - title: The Two Towers
      author: J.R.R. Tolkien
      isbn: 978-0618002238
      copies: 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			m, err := readManifest(f)
			if err != nil {
				return err
			}

			mgr, err := a.openSeeded(cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			return importBooks(cmd, mgr, m)
		},
	}
}

func importBooks(cmd *cobra.Command, mgr *library.LibraryManager, m manifest) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Importing %d book(s)...\n", len(m.Books))

	successCount := 0
	errorCount := 0
	for _, b := range m.Books {
		fmt.Fprintf(out, "Importing: %s by %s... ", b.Title, b.Author)

		book, err := mgr.CatalogAdd(cmd.Context(), b.Title, b.Author, b.ISBN, b.Copies)
		if err != nil {
			if library.CodeOf(err) == library.CodePersistenceUnavailable {
				fmt.Fprintln(out, "ERROR")
				return err
			}
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}

		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", book.ID)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		books, err := mgr.CatalogListAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-5s %-30s %-25s %-16s %s\n", "ID", "Title", "Author", "ISBN", "Avail")
		fmt.Fprintln(out, strings.Repeat("-", 85))
		for _, b := range books {
			fmt.Fprintln(out, library.PrettyBook(b))
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("%d book(s) could not be imported", errorCount)
	}
	return nil
}
