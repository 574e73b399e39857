package listener

import "github.com/nolashq/nolas/internal/models"

// ShardAccounts splits accounts into contiguous slices, one per worker. The
// last worker absorbs the remainder. Workers with no accounts get an empty
// slice rather than being dropped, so worker ids stay stable.
func ShardAccounts(accounts []*models.Account, workers int) [][]*models.Account {
	if workers <= 1 {
		return [][]*models.Account{accounts}
	}

	shards := make([][]*models.Account, workers)
	perWorker := len(accounts) / workers

	start := 0
	for i := 0; i < workers; i++ {
		end := start + perWorker
		if i == workers-1 {
			end = len(accounts)
		}
		shards[i] = accounts[start:end]
		start = end
	}

	return shards
}
