package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/news-retriever/internal/infrastructure/dataset"
)

var (
	convertInput  string
	convertOutput string
	convertSample int
	convertSeed   uint64
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Turn the News Category JSONL dataset into a corpus table",
	Long: `Reads the News Category dataset (one JSON object per line), composes the
embeddable text of each article, drops records without a short description and
keeps a seeded random sample. The output format follows the file extension
(.csv or .xlsx).`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "data/News_Category_Dataset_v3.json", "dataset in JSON Lines format")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "data/news_rag_table.csv", "corpus table to write (.csv or .xlsx)")
	convertCmd.Flags().IntVarP(&convertSample, "sample", "n", dataset.DefaultSampleSize, "rows to keep (0 keeps everything)")
	convertCmd.Flags().Uint64Var(&convertSeed, "seed", dataset.DefaultSampleSeed, "sampling seed")
}

func runConvert(cmd *cobra.Command, args []string) error {
	f, err := os.Open(convertInput)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := dataset.ReadNewsCategory(f)
	if err != nil {
		return err
	}
	articles := dataset.ConvertNewsCategory(records, dataset.ConvertOptions{
		SampleSize: convertSample,
		Seed:       convertSeed,
	})
	if err := dataset.SaveTable(convertOutput, articles); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Read %d records, wrote %d articles to %s\n", len(records), len(articles), convertOutput)
	return nil
}
