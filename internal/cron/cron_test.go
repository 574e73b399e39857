package cron

import (
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/internal/logger"
)

type fakeKubernetes struct {
	kubernetes.Interface
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{},
		Logger:    &logger.Config{LogLevel: "info"},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &fakeKubernetes{}

	cm := NewCronManager(cfg, log, k8s, nil, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	t.Setenv("CRON_SCHEDULE_HEARTBEAT", "0 * * * * *")
	t.Setenv("CRON_SCHEDULE_AUTH_REQUEST_CLEANUP", "0 */10 * * * *")
	t.Setenv("CRON_SCHEDULE_UID_TRACKING_PRUNE", "0 0 3 * * *")

	cm := NewCronManager(testConfig(), getLogger(), nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	require.Len(t, cm.jobIDs, 3)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "auth_request_cleanup")
	assert.Contains(t, cm.jobIDs, "uid_tracking_prune")
}

func TestCronManager_DisabledJobsAreSkipped(t *testing.T) {
	t.Setenv("CRON_SCHEDULE_HEARTBEAT", "0 * * * * *")
	t.Setenv("CRON_SCHEDULE_AUTH_REQUEST_CLEANUP", "")
	t.Setenv("CRON_SCHEDULE_UID_TRACKING_PRUNE", "")

	cm := NewCronManager(testConfig(), getLogger(), nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	require.Len(t, cm.jobIDs, 1)
	assert.Contains(t, cm.jobIDs, "heartbeat")
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &fakeKubernetes{}, nil, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()

	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
