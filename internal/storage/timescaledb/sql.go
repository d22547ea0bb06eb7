package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createHypertableSQL = `SELECT create_hypertable('window_results', 'time', if_not_exists => TRUE, migrate_data => TRUE);`

// Daily compliance per building, refreshed by the policy below
const createDailyViewSQL = `CREATE MATERIALIZED VIEW IF NOT EXISTS window_results_1d
WITH (timescaledb.continuous) AS
SELECT
	time_bucket('1 day', time) AS bucket,
	building_id,
	count(*) AS windows,
	count(*) FILTER (WHERE compliant) AS compliant_windows,
	avg(insolation_seconds) AS avg_insolation_seconds,
	min(keo) AS min_keo
FROM window_results
GROUP BY bucket, building_id
WITH NO DATA;`

const addDailyPolicySQL = `SELECT add_continuous_aggregate_policy('window_results_1d',
	start_offset => INTERVAL '30 days',
	end_offset => INTERVAL '1 hour',
	schedule_interval => INTERVAL '1 hour',
	if_not_exists => TRUE);`
