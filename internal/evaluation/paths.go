package evaluation

import "fmt"

// Artifact keys are deterministic per submission so placeholder objects can
// be written before the worker exists and signed for writing.

func submissionKey(submissionID, name string) string {
	return fmt.Sprintf("submissions/%s/%s", submissionID, name)
}

func runfileKey(id string) string            { return submissionKey(id, "run/run.txt") }
func inputfileKey(id string) string          { return submissionKey(id, "run/input.txt") }
func stdoutKey(id string) string             { return submissionKey(id, "run/stdout.txt") }
func stderrKey(id string) string             { return submissionKey(id, "run/stderr.txt") }
func outputKey(id string) string             { return submissionKey(id, "run/output.zip") }
func privateOutputKey(id string) string      { return submissionKey(id, "run/private_output.zip") }
func detailedResultsKey(id string) string    { return submissionKey(id, "run/detailed_results.zip") }
func historyKey(id string) string            { return submissionKey(id, "run/history.txt") }
func scoresExportKey(id string) string       { return submissionKey(id, "run/scores.txt") }
func coopetitionKey(id string) string        { return submissionKey(id, "run/coopetition.zip") }
func predictionRunfileKey(id string) string  { return submissionKey(id, "predict/run.txt") }
func predictionStdoutKey(id string) string   { return submissionKey(id, "predict/stdout.txt") }
func predictionStderrKey(id string) string   { return submissionKey(id, "predict/stderr.txt") }
func predictionOutputKey(id string) string   { return submissionKey(id, "predict/output.zip") }
