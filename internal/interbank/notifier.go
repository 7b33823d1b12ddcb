// Package interbank talks to counterparty banks on behalf of the ledger.
package interbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

type Endpoints struct {
	CreateAccountURL string
	GetAccountURL    string
	IssueLoanURL     string
	TransferURL      string
	NotifyURL        string
}

type Options struct {
	RetryCount         int
	Delay              time.Duration
	LoanAmountCents    uint64
	LoanThresholdCents uint64
	Banks              map[domain.Bank]Endpoints
}

type recorder interface {
	ObserveNotification(bank, outcome string)
	ObserveInterbankCall(bank, call string, d time.Duration)
}

type Notifier struct {
	opts       Options
	httpClient *http.Client
	metrics    recorder
}

func NewNotifier(opts Options, httpClient *http.Client, metrics recorder) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Notifier{opts: opts, httpClient: httpClient, metrics: metrics}
}

// callError classifies a failed counterparty call.
type callError struct {
	result NotificationResult
	err    error
}

func (e *callError) Error() string { return fmt.Sprintf("%s: %v", e.result, e.err) }
func (e *callError) Unwrap() error { return e.err }

// TryExternalTransfer pays amount from our account at bank to the external
// account to. transactionID is sent as the counterparty's transaction
// number, so it must be unique per payout and stable across retries. The
// caller's reference travels in the description. It never fails: every outcome, including exhausted retries,
// is reported as a NotificationResult. The caller's cancellation does not
// interrupt the attempts.
func (n *Notifier) TryExternalTransfer(ctx context.Context, bank domain.Bank, transactionID, from, to, amount uint128.Uint128, reference uint64) NotificationResult {
	ctx = context.WithoutCancel(ctx)
	txn := domain.FormatTransferID(transactionID)
	log := logging.FromContext(ctx).With("bank", bank.String(), "transaction_number", txn, "to_account", to.String(), "reference", reference)

	endpoints, ok := n.opts.Banks[bank]
	if !ok || endpoints.TransferURL == "" {
		log.Warn("no endpoints configured for bank")
		n.observe(bank, Rejected)
		return Rejected
	}
	if n.opts.RetryCount <= 0 {
		n.observe(bank, Rejected)
		return Rejected
	}

	result := Rejected
	attempt := 0
	op := func() error {
		attempt++
		err := n.attempt(ctx, log, bank, endpoints, txn, from, to, amount, reference)
		if err == nil {
			result = Succeeded
			return nil
		}

		var ce *callError
		if !errors.As(err, &ce) {
			ce = &callError{result: UnknownFailure, err: err}
		}
		result = ce.result
		log.Warn("interbank transfer attempt failed", "attempt", attempt, "result", result.String(), "error", ce.err)
		if result == UnknownFailure {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(n.opts.Delay), uint64(n.opts.RetryCount-1))
	if err := backoff.Retry(op, policy); err != nil {
		log.Error("interbank transfer failed", "attempts", attempt, "result", result.String())
	} else {
		log.Info("interbank transfer succeeded", "attempts", attempt)
	}

	n.observe(bank, result)
	return result
}

func (n *Notifier) observe(bank domain.Bank, result NotificationResult) {
	if n.metrics != nil {
		n.metrics.ObserveNotification(bank.String(), result.String())
	}
}

func (n *Notifier) attempt(ctx context.Context, log *slog.Logger, bank domain.Bank, ep Endpoints, txn string, from, to, amount uint128.Uint128, reference uint64) error {
	if ep.CreateAccountURL != "" {
		err := n.call(ctx, log, bank, "create_account", http.MethodPost, ep.CreateAccountURL,
			CreateAccountRequest{NotificationURL: ep.NotifyURL}, nil, http.StatusConflict)
		if err != nil {
			return err
		}
	}

	if ep.GetAccountURL != "" && ep.IssueLoanURL != "" {
		var account AccountResponse
		if err := n.call(ctx, log, bank, "get_account", http.MethodGet, ep.GetAccountURL, nil, &account); err != nil {
			return err
		}

		threshold := CentsToAmount(uint128.From64(n.opts.LoanThresholdCents))
		if account.NetBalance.LessThan(threshold) {
			var loan IssueLoanResponse
			req := IssueLoanRequest{Amount: CentsToAmount(uint128.From64(n.opts.LoanAmountCents))}
			if err := n.call(ctx, log, bank, "issue_loan", http.MethodPost, ep.IssueLoanURL, req, &loan); err != nil {
				return err
			}
			if !loan.Success {
				log.Warn("counterparty declined liquidity loan", "net_balance", account.NetBalance.String())
			} else {
				log.Info("liquidity loan drawn", "loan_number", loan.LoanNumber, "net_balance", account.NetBalance.String())
			}
		}
	}

	req := TransferRequest{
		TransactionNumber: txn,
		FromAccountNumber: from.String(),
		ToAccountNumber:   to.String(),
		ToBankName:        bank.String(),
		Amount:            CentsToAmount(amount),
		Description:       description(reference),
	}
	return n.call(ctx, log, bank, "transfer", http.MethodPost, ep.TransferURL, req, nil)
}

func description(reference uint64) string {
	if reference == 0 {
		return defaultDescription
	}
	return strconv.FormatUint(reference, 10)
}

// call performs one JSON request. Statuses listed in tolerated count as
// success alongside 2xx.
func (n *Notifier) call(ctx context.Context, log *slog.Logger, bank domain.Bank, name, method, url string, body, out any, tolerated ...int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &callError{result: Rejected, err: fmt.Errorf("%s: marshal: %w", name, err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &callError{result: Rejected, err: fmt.Errorf("%s: build request: %w", name, err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	elapsed := time.Since(start)
	if n.metrics != nil {
		n.metrics.ObserveInterbankCall(bank.String(), name, elapsed)
	}
	if err != nil {
		return &callError{result: UnknownFailure, err: fmt.Errorf("%s: send: %w", name, err)}
	}
	defer resp.Body.Close()

	log.Info("interbank response received",
		"call", name,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)

	for _, code := range tolerated {
		if resp.StatusCode == code {
			return nil
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &callError{
			result: classify(name, resp.StatusCode),
			err:    fmt.Errorf("%s: unexpected status %d: %s", name, resp.StatusCode, string(respBody)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &callError{result: UnknownFailure, err: fmt.Errorf("%s: decode: %w", name, err)}
		}
	}
	return nil
}

func classify(call string, status int) NotificationResult {
	switch {
	case status == http.StatusNotFound && call == "transfer":
		return AccountNotFound
	case status >= 400 && status < 500:
		return Rejected
	default:
		return UnknownFailure
	}
}
