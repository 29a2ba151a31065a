package library

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Users, Books and Loans are the in-memory forms of the three documents.
type (
	Users map[string]User
	Books map[int]Book
	Loans map[int]Loan
)

// rawEntries are stored records that could not be decoded, keyed as stored.
// Saves write them back unchanged.
type rawEntries map[string]jsoniter.RawMessage

// ids returns the numeric keys, which new records must not reuse.
func (r rawEntries) ids() []int {
	var out []int
	for key := range r {
		if id, err := strconv.Atoi(key); err == nil {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// keys returns every key in order.
func (r rawEntries) keys() []string {
	out := make([]string, 0, len(r))
	for key := range r {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// snapshot holds freshly decoded working copies of the documents one
// operation needs. Nothing in it outlives the call.
type snapshot struct {
	users Users
	books Books
	loans Loans
	kept  map[Collection]rawEntries
}

// decodeRecords turns a stored body into a collection one record at a time.
// A missing body yields an empty collection, and so does one that is not a
// JSON object, after a warning. A record whose key or body cannot be decoded
// is returned in kept instead.
func decodeRecords[K comparable, T any](body []byte, c Collection, log *slog.Logger, parseKey func(string) (K, bool)) (map[K]T, rawEntries) {
	out := make(map[K]T)
	if len(body) == 0 {
		return out, nil
	}
	var raw map[string]jsoniter.RawMessage
	if err := jsonAPI.Unmarshal(body, &raw); err != nil {
		log.Warn("corrupt document treated as empty", "collection", c, "err", err)
		return out, nil
	}

	var kept rawEntries
	keep := func(key string, msg jsoniter.RawMessage, reason string, err error) {
		if kept == nil {
			kept = make(rawEntries)
		}
		kept[key] = msg
		log.Warn("keeping unreadable record as stored", "collection", c, "key", key, "reason", reason, "err", err)
	}
	for key, msg := range raw {
		k, ok := parseKey(key)
		if !ok {
			keep(key, msg, "invalid key", nil)
			continue
		}
		var v T
		if err := jsonAPI.Unmarshal(msg, &v); err != nil {
			keep(key, msg, "invalid record", err)
			continue
		}
		out[k] = v
	}
	return out, kept
}

func stringKey(key string) (string, bool) { return key, key != "" }

func intKey(key string) (int, bool) {
	id, err := strconv.Atoi(key)
	return id, err == nil && id > 0
}

// encodeDocument writes the decoded records over the kept ones, indented by
// two spaces.
func encodeDocument[K comparable, T any](c Collection, records map[K]T, kept rawEntries, key func(K) string) (Document, error) {
	merged := make(map[string]any, len(records)+len(kept))
	for k, msg := range kept {
		merged[k] = msg
	}
	for k, v := range records {
		merged[key(k)] = v
	}
	compact, err := jsonAPI.Marshal(merged)
	if err != nil {
		return Document{}, ErrPersistenceUnavailable.WithMessagef("encode %s document", c).WithCause(err)
	}
	var body bytes.Buffer
	if err := json.Indent(&body, compact, "", "  "); err != nil {
		return Document{}, ErrPersistenceUnavailable.WithMessagef("indent %s document", c).WithCause(err)
	}
	return Document{Collection: c, Body: body.Bytes()}, nil
}

func load(ctx context.Context, gw Gateway, c Collection) ([]byte, error) {
	body, err := gw.Load(ctx, c)
	if err != nil {
		return nil, ErrPersistenceUnavailable.WithMessagef("read %s document", c).WithCause(err)
	}
	return body, nil
}

func loadUsers(ctx context.Context, gw Gateway, log *slog.Logger) (Users, rawEntries, error) {
	body, err := load(ctx, gw, UsersCollection)
	if err != nil {
		return nil, nil, err
	}
	users, kept := decodeRecords[string, User](body, UsersCollection, log, stringKey)
	for id, u := range users {
		u.ID = id
		users[id] = u
	}
	return users, kept, nil
}

func loadBooks(ctx context.Context, gw Gateway, log *slog.Logger) (Books, rawEntries, error) {
	body, err := load(ctx, gw, BooksCollection)
	if err != nil {
		return nil, nil, err
	}
	books, kept := decodeRecords[int, Book](body, BooksCollection, log, intKey)
	for id, b := range books {
		b.ID = id
		books[id] = b
	}
	return books, kept, nil
}

func loadLoans(ctx context.Context, gw Gateway, log *slog.Logger) (Loans, rawEntries, error) {
	body, err := load(ctx, gw, LoansCollection)
	if err != nil {
		return nil, nil, err
	}
	loans, kept := decodeRecords[int, Loan](body, LoansCollection, log, intKey)
	for id, l := range loans {
		l.ID = id
		loans[id] = l
	}
	return loans, kept, nil
}

func encodeUsers(users Users, kept rawEntries) (Document, error) {
	return encodeDocument(UsersCollection, users, kept, func(id string) string { return id })
}

func encodeBooks(books Books, kept rawEntries) (Document, error) {
	return encodeDocument(BooksCollection, books, kept, strconv.Itoa)
}

func encodeLoans(loans Loans, kept rawEntries) (Document, error) {
	return encodeDocument(LoansCollection, loans, kept, strconv.Itoa)
}
