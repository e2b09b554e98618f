package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
)

var (
	firstNames = []string{"Jane", "John", "Erika", "Max", "Aiko", "Ravi", "Lena", "Omar", "Sofia", "Tom"}
	lastNames  = []string{"Doe", "Smith", "Mustermann", "Tanaka", "Patel", "Berg", "Haddad", "Rossi", "Nguyen"}
	companies  = []string{"Google", "Microsoft", "Apple", "Amazon", "Acme Corp", "Globex", "Initech"}
	positions  = []string{"Software Engineer", "Product Manager", "Designer", "Data Scientist", "CTO"}
	cities     = []string{"Austin", "San Francisco", "New York", "Berlin", "Seattle", "London"}
	queries    = []string{"engineer austin", "google", "product manager", "designer berlin", "jane"}
)

// Usage examples on the command line:
// > go run main.go import Connections.csv Contacts.csv
// > go run main.go search engineer austin
// > go run main.go list --page 2 --limit 20
// > go run main.go bench --sizes 100,1000,5000
func main() {
	cmd := &cli.Command{
		Name:  "client",
		Usage: "Command line client of the contacts service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Base URL of the contacts service",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("BEETAGGED_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import a LinkedIn export, optionally with its Contacts file",
				ArgsUsage: "CONNECTIONS.csv [CONTACTS.csv]",
				Action:    importFiles,
			},
			{
				Name:      "search",
				Usage:     "Search contacts",
				ArgsUsage: "QUERY...",
				Action:    searchContacts,
			},
			{
				Name:  "list",
				Usage: "List contacts, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: listContacts,
			},
			{
				Name:  "bench",
				Usage: "Import generated contacts and measure request durations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sizes", Value: "100,1000,5000", Usage: "comma-separated numbers of contacts"},
				},
				Action: bench,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("client error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func importFiles(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("expected one or two CSV files")
	}
	files := map[string]string{}
	if len(args) == 1 {
		files["file"] = args[0]
	} else {
		files["connections"] = args[0]
		files["contacts"] = args[1]
	}
	contents := map[string][]byte{}
	for field, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		contents[field] = data
	}
	result, _, err := upload(ctx, cmd.String("url"), contents, files)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)
	fmt.Printf("inserted %d, updated %d, skipped %d\n", result.Inserted, result.Updated, result.Skipped)
	return nil
}

func searchContacts(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	var result model.SearchResult
	if _, err := getJSON(ctx, cmd.String("url")+"/api/search?q="+url.QueryEscape(query), &result); err != nil {
		return err
	}
	printContacts(result.Contacts)
	fmt.Printf("%d of %d matches\n", len(result.Contacts), result.Total)
	return nil
}

func listContacts(ctx context.Context, cmd *cli.Command) error {
	requestURL := fmt.Sprintf("%s/api/contacts?page=%d&limit=%d", cmd.String("url"), cmd.Int("page"), cmd.Int("limit"))
	var page model.ContactPage
	if _, err := getJSON(ctx, requestURL, &page); err != nil {
		return err
	}
	printContacts(page.Contacts)
	fmt.Printf("page %d, %d contacts in total\n", page.Page, page.Total)
	return nil
}

func printContacts(contacts []model.Contact) {
	for _, c := range contacts {
		fmt.Printf("%-28s %-20s %-24s %s\n", c.Name, c.Company, c.Position, c.Location)
	}
}

// bench imports generated exports of increasing size and prints the average duration of the
// requests in milliseconds.
func bench(ctx context.Context, cmd *cli.Command) error {
	baseURL := cmd.String("url")
	fmt.Println()
	fmt.Println("  Contacts    IMPORT    SEARCH      LIST ")
	fmt.Println("-----------------------------------------")
	for _, s := range strings.Split(cmd.String("sizes"), ",") {
		size, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || size < 1 {
			return fmt.Errorf("invalid size %q", s)
		}
		fmt.Printf("%10d", size)

		data := map[string][]byte{"file": generateExport(size)}
		_, duration, err := upload(ctx, baseURL, data, map[string]string{"file": "Connections.csv"})
		if err != nil {
			return err
		}
		fmt.Printf("%10d", duration.Milliseconds())

		var total time.Duration
		for _, q := range queries {
			var result model.SearchResult
			d, err := getJSON(ctx, baseURL+"/api/search?q="+url.QueryEscape(q), &result)
			if err != nil {
				return err
			}
			total += d
		}
		fmt.Printf("%10d", total.Milliseconds()/int64(len(queries)))

		var page model.ContactPage
		d, err := getJSON(ctx, baseURL+"/api/contacts?page=1&limit=200", &page)
		if err != nil {
			return err
		}
		fmt.Printf("%10d", d.Milliseconds())
		fmt.Println()
	}
	return nil
}

// generateExport creates a Connections file with random but distinct contacts.
func generateExport(size int) []byte {
	var b bytes.Buffer
	b.WriteString("First Name,Last Name,Company,Position,Location,Email Address\n")
	for i := 0; i < size; i++ {
		first := firstNames[rand.Intn(len(firstNames))]
		last := fmt.Sprintf("%s%d", lastNames[rand.Intn(len(lastNames))], i)
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s.%s@example.com\n",
			first, last,
			companies[rand.Intn(len(companies))],
			positions[rand.Intn(len(positions))],
			cities[rand.Intn(len(cities))],
			strings.ToLower(first), strings.ToLower(last))
	}
	return b.Bytes()
}

// upload posts the files to the LinkedIn import endpoint. data and names are keyed by form field.
func upload(ctx context.Context, baseURL string, data map[string][]byte, names map[string]string) (model.ImportResult, time.Duration, error) {
	var result model.ImportResult
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for field, content := range data {
		part, err := writer.CreateFormFile(field, filepath.Base(names[field]))
		if err != nil {
			return result, 0, err
		}
		if _, err := part.Write(content); err != nil {
			return result, 0, err
		}
	}
	if err := writer.Close(); err != nil {
		return result, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/import/linkedin", &body)
	if err != nil {
		return result, 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resBody, duration, err := sendRequest(req)
	if err != nil {
		return result, duration, err
	}
	if err := json.Unmarshal(resBody, &result); err != nil {
		return result, duration, fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	if !result.Success {
		return result, duration, fmt.Errorf("import failed: %s", result.Message)
	}
	return result, duration, nil
}

func getJSON(ctx context.Context, requestURL string, out interface{}) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, err
	}
	resBody, duration, err := sendRequest(req)
	if err != nil {
		return duration, err
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		return duration, fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	return duration, nil
}

func sendRequest(req *http.Request) ([]byte, time.Duration, error) {
	before := time.Now()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read response body: %w", err)
	}
	duration := time.Since(before)
	if res.StatusCode >= http.StatusBadRequest {
		return resBody, duration, fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, res.Status, strings.TrimSpace(string(resBody)))
	}
	return resBody, duration, nil
}
