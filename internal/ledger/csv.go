package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// TransactionHeader is the CSV header for transactions.csv and exports.
const TransactionHeader = "id,account_id,date,amount,currency,merchant_name,category,notes,source,dedupe_key,external_id,created_at"

// AccountHeader is the CSV header for accounts.csv. Access credentials
// are not part of it; see CredentialHeader.
const AccountHeader = "id,owner_id,name,source,institution_name,mask,external_item_id,external_account_id,sync_cursor,created_at"

// CredentialHeader is the CSV header for credentials.csv, one row per
// linked item.
const CredentialHeader = "owner_id,external_item_id,access_credential"

const (
	dateFormat = "2006-01-02"

	txnFields   = 12
	colID       = 0
	colAcctID   = 1
	colDate     = 2
	colAmount   = 3
	colCurrency = 4
	colMerchant = 5
	colCategory = 6
	colNotes    = 7
	colSource   = 8
	colDedupe   = 9
	colExtID    = 10
	colCreated  = 11

	acctFields  = 10
	colAOwner   = 1
	colAName    = 2
	colASource  = 3
	colAInst    = 4
	colAMask    = 5
	colAItem    = 6
	colAExtAcct = 7
	colACursor  = 8
	colACreated = 9

	credFields     = 3
	colCOwner      = 0
	colCItem       = 1
	colCCredential = 2
)

// ReadTransactions reads all transactions from a CSV reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	records, err := readAll(r, txnFields)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	var txns []model.Transaction
	for i, rec := range records {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteTransactions writes transactions to w, including the header.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, txnFields)
	row[colID] = t.ID
	row[colAcctID] = t.AccountID
	row[colDate] = t.Date.Format(dateFormat)
	row[colAmount] = formatAmount(t.Amount)
	row[colCurrency] = t.Currency
	row[colMerchant] = t.MerchantName
	row[colCategory] = t.CategoryString()
	row[colNotes] = t.Notes
	row[colSource] = string(t.Source)
	row[colDedupe] = t.DedupeKey
	row[colExtID] = t.ExternalID
	if !t.CreatedAt.IsZero() {
		row[colCreated] = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != txnFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", txnFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	created, err := parseTimestamp(record[colCreated])
	if err != nil {
		return model.Transaction{}, err
	}

	t := model.Transaction{
		ID:           record[colID],
		AccountID:    record[colAcctID],
		Date:         date,
		Amount:       amount,
		Currency:     record[colCurrency],
		MerchantName: record[colMerchant],
		Notes:        record[colNotes],
		Source:       model.Source(record[colSource]),
		DedupeKey:    record[colDedupe],
		ExternalID:   record[colExtID],
		CreatedAt:    created,
	}
	if c := record[colCategory]; c != "" {
		t.Category = &c
	}
	return t, nil
}

// ReadAccounts reads all accounts from a CSV reader.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	records, err := readAll(r, acctFields)
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	var accts []model.Account
	for i, rec := range records {
		a, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accts = append(accts, a)
	}
	return accts, nil
}

// WriteAccounts writes accounts to w, including the header.
func WriteAccounts(w io.Writer, accts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(AccountHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, a := range accts {
		if err := cw.Write(MarshalAccount(a)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(a model.Account) []string {
	row := make([]string, acctFields)
	row[colID] = a.ID
	row[colAOwner] = a.OwnerID
	row[colAName] = a.Name
	row[colASource] = string(a.Source)
	row[colAInst] = a.InstitutionName
	row[colAMask] = a.Mask
	row[colAItem] = a.ExternalItemID
	row[colAExtAcct] = a.ExternalAccountID
	row[colACursor] = a.SyncCursor
	if !a.CreatedAt.IsZero() {
		row[colACreated] = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != acctFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", acctFields, len(record))
	}
	created, err := parseTimestamp(record[colACreated])
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{
		ID:                record[colID],
		OwnerID:           record[colAOwner],
		Name:              record[colAName],
		Source:            model.Source(record[colASource]),
		InstitutionName:   record[colAInst],
		Mask:              record[colAMask],
		ExternalItemID:    record[colAItem],
		ExternalAccountID: record[colAExtAcct],
		SyncCursor:        record[colACursor],
		CreatedAt:         created,
	}, nil
}

// ItemCredential is the access credential of one owner's linked item.
type ItemCredential struct {
	OwnerID    string
	ItemID     string
	Credential string
}

// Credentials collects one credential per (owner, item) from accts, in
// account order.
func Credentials(accts []model.Account) []ItemCredential {
	var creds []ItemCredential
	seen := make(map[[2]string]bool)
	for _, a := range accts {
		k := [2]string{a.OwnerID, a.ExternalItemID}
		if a.AccessCredential == "" || seen[k] {
			continue
		}
		seen[k] = true
		creds = append(creds, ItemCredential{OwnerID: a.OwnerID, ItemID: a.ExternalItemID, Credential: a.AccessCredential})
	}
	return creds
}

// ApplyCredentials sets AccessCredential on every account of an item that
// has a credential.
func ApplyCredentials(accts []model.Account, creds []ItemCredential) {
	byItem := make(map[[2]string]string, len(creds))
	for _, c := range creds {
		byItem[[2]string{c.OwnerID, c.ItemID}] = c.Credential
	}
	for i, a := range accts {
		if c, ok := byItem[[2]string{a.OwnerID, a.ExternalItemID}]; ok {
			accts[i].AccessCredential = c
		}
	}
}

// ReadCredentials reads item credentials from a CSV reader.
func ReadCredentials(r io.Reader) ([]ItemCredential, error) {
	records, err := readAll(r, credFields)
	if err != nil {
		return nil, fmt.Errorf("reading credentials CSV: %w", err)
	}
	creds := make([]ItemCredential, 0, len(records))
	for _, rec := range records {
		creds = append(creds, ItemCredential{
			OwnerID:    rec[colCOwner],
			ItemID:     rec[colCItem],
			Credential: rec[colCCredential],
		})
	}
	return creds, nil
}

// WriteCredentials writes item credentials to w, including the header.
func WriteCredentials(w io.Writer, creds []ItemCredential) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(CredentialHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, c := range creds {
		row := make([]string, credFields)
		row[colCOwner] = c.OwnerID
		row[colCItem] = c.ItemID
		row[colCCredential] = c.Credential
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatAmount prints at least two decimal places without losing precision.
func formatAmount(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return ts, nil
}

// readAll returns data records, skipping the header row.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
