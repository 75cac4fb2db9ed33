package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contacts-directory/pkg/model"
)

// baseURL is the address of the contacts service under test.
var baseURL string

// runID makes the e-mail addresses of one run unique across runs.
var runID = uuid.NewString()[:8]

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080
func main() {
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "the address of the contacts service")
	flag.Parse()

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE BIRTHDAYS")
	fmt.Println("-------------------------------------------------------------")
	sizes := []int{1000, 5000, 10000, 50000, 100000}
	putBody := mustMarshal(model.Contact{Phone: ptr("+39 999 777 556")})
	for _, loops := range sizes {
		firstID, _ := sendPostRequest(newContactBody(loops, -1))
		fmt.Printf("%10d", loops)
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				_, d := sendPostRequest(newContactBody(loops, i))
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodPut, bytes.NewReader(putBody))
			}
			callInLoop(firstID, loops, f)
		}
		{
			// GET requests
			f := func(id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodGet, nil)
			}
			callInLoop(firstID, loops, f)
		}
		{
			// GET /birthdays while the table is full
			_, d := sendRequest(http.MethodGet, baseURL+"/birthdays?days=365", nil)
			birthdays := d / 1000
			// DELETE requests
			f := func(id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodDelete, nil)
			}
			callInLoop(firstID, loops, f)
			fmt.Printf("%10d", birthdays)
		}
		sendPutGetDeleteRequest(firstID, http.MethodDelete, nil)
		fmt.Println()
	}
}

// newContactBody returns the JSON of a contact with an e-mail address that is unique for the
// given size and index.
func newContactBody(loops int, i int) io.Reader {
	contact := model.Contact{
		FirstName: ptr("Marcus"),
		LastName:  ptr("Antonius"),
		Email:     ptr(fmt.Sprintf("marcus.%s.%d.%d@example.org", runID, loops, i)),
		Phone:     ptr("+39 999 777 555"),
		BirthDate: ptr("1927-11-09"),
	}
	return bytes.NewReader(mustMarshal(contact))
}

func ptr(s string) *string {
	return &s
}

func mustMarshal(contact model.Contact) []byte {
	data, err := json.Marshal(contact)
	if err != nil {
		panic(err)
	}
	return data
}

func callInLoop(firstID int64, loops int, f func(id int64) int64) {
	ids := createRandomSliceWithIDs(firstID+1, loops)
	var duration int64
	for _, id := range ids {
		d := f(id)
		duration += d
	}
	fmt.Printf("%10d", duration/int64(loops*1000))
}

func createRandomSliceWithIDs(firstID int64, loops int) []int64 {
	ids := make([]int64, 0, loops)
	for i := 0; i < loops; i++ {
		ids = append(ids, firstID+int64(i))
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

func sendPostRequest(bodyReader io.Reader) (int64, int64) {
	resBody, duration := sendRequest(http.MethodPost, baseURL+"/contacts", bodyReader)
	var contact model.Contact
	err := json.Unmarshal(resBody, &contact)
	if err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return contact.Id, duration
}

func sendPutGetDeleteRequest(id int64, method string, bodyReader io.Reader) int64 {
	requestURL := fmt.Sprintf("%s/contacts/%d", baseURL, id)
	_, duration := sendRequest(method, requestURL, bodyReader)
	return duration
}

func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	after := time.Now().UnixNano()
	return resBody, after - before
}
