package api

import (
	"fmt"
	"net/http"

	"github.com/quietqueue/jobqueue/internal/queuecore"
)

const dashboardJobsLimit = 20

// handleDashboardStats serves the per-status counts the dashboard's stat
// cards poll (adapted from the teacher's dashboard.go /api/stats route).
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.inspector.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats_failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleDashboardMetrics serves the counters the dashboard's execution
// summary polls (adapted from the teacher's dashboard.go /api/executions).
func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.snapshot())
}

// handleDashboardJobs serves a small page of the most recent jobs for the
// dashboard's activity table (adapted from the teacher's dashboard.go
// /api/jobs, which listed raw job rows).
func (s *Server) handleDashboardJobs(w http.ResponseWriter, r *http.Request) {
	page, err := s.inspector.List(queuecore.ListOptions{Limit: dashboardJobsLimit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	views := make([]jobView, len(page.Jobs))
	for i, j := range page.Jobs {
		views[i] = toJobView(j)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
	<title>jobqueue dashboard</title>
	<style>
	body {
		font-family: 'Segoe UI', Roboto, sans-serif;
		margin: 0;
		padding: 20px;
		background-color: #0d1117;
		color: #e6edf3;
	}

	.container {
		max-width: 1200px;
		margin: 0 auto;
		background: #161b22;
		padding: 30px;
		border-radius: 10px;
		box-shadow: 0 0 20px rgba(0, 0, 0, 0.5);
	}

	h1 {
		color: #58a6ff;
		border-bottom: 2px solid #30363d;
		padding-bottom: 10px;
		margin-bottom: 20px;
		font-size: 28px;
		letter-spacing: 0.5px;
		text-shadow: 0 0 6px rgba(88, 166, 255, 0.4);
	}

	h2 {
		color: #58a6ff;
		margin-top: 40px;
		font-size: 20px;
		text-shadow: 0 0 6px rgba(88, 166, 255, 0.4);
	}

	.stats-grid {
		display: grid;
		grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
		gap: 20px;
		margin: 30px 0;
	}

	.stat-card {
		background: #21262d;
		padding: 15px 20px;
		border-radius: 8px;
		border: 1px solid #30363d;
		transition: transform 0.2s ease, box-shadow 0.2s ease;
	}

	.stat-card:hover {
		transform: translateY(-3px);
		box-shadow: 0 0 10px rgba(88, 166, 255, 0.3);
	}

	.stat-label {
		font-size: 12px;
		color: #8b949e;
		text-transform: uppercase;
		letter-spacing: 0.05em;
	}

	.stat-value {
		font-size: 26px;
		font-weight: bold;
		color: #e6edf3;
		margin-top: 8px;
		transition: opacity 0.3s ease;
	}

	table {
		width: 100%;
		border-collapse: collapse;
		margin-top: 15px;
		border: 1px solid #30363d;
		border-radius: 6px;
		overflow: hidden;
	}

	th, td {
		padding: 12px 10px;
		text-align: left;
		border-bottom: 1px solid #30363d;
	}

	th {
		background-color: #21262d;
		color: #58a6ff;
		text-transform: uppercase;
		font-size: 13px;
		letter-spacing: 0.03em;
	}

	tr:hover {
		background-color: #1f6feb22;
	}

	.status-queued { color: #f39c12; font-weight: bold; }
	.status-processing { color: #1f6feb; font-weight: bold; }
	.status-done { color: #2ecc71; font-weight: bold; }
	.status-failed { color: #e74c3c; font-weight: bold; }

	.refresh-info {
		text-align: right;
		color: #8b949e;
		font-size: 12px;
		margin-top: 15px;
	}
	</style>
</head>
<body>
	<div class="container">
		<h1>jobqueue dashboard</h1>

		<div class="stats-grid">
			<div class="stat-card"><div class="stat-label">Queued</div><div class="stat-value" id="stat-queued">-</div></div>
			<div class="stat-card"><div class="stat-label">Processing</div><div class="stat-value" id="stat-processing">-</div></div>
			<div class="stat-card"><div class="stat-label">Done</div><div class="stat-value" id="stat-done">-</div></div>
			<div class="stat-card"><div class="stat-label">Failed</div><div class="stat-value" id="stat-failed">-</div></div>
			<div class="stat-card"><div class="stat-label">Retried</div><div class="stat-value" id="stat-retried">-</div></div>
			<div class="stat-card"><div class="stat-label">Leased</div><div class="stat-value" id="stat-leased">-</div></div>
		</div>

		<h2>Recent jobs</h2>
		<table id="jobs">
			<thead><tr><th>ID</th><th>Type</th><th>Target</th><th>Attempts</th><th>Status</th></tr></thead>
			<tbody id="jobs-body"></tbody>
		</table>

		<div class="refresh-info">Auto-updating every 5 seconds</div>
	</div>

	<script>
		function fadeUpdate(element, newValue) {
			if (element.textContent !== newValue) {
				element.style.opacity = 0.3;
				setTimeout(() => {
					element.textContent = newValue;
					element.style.opacity = 1;
				}, 200);
			}
		}

		function updateStats() {
			fetch('/dashboard/api/stats')
				.then(r => r.json())
				.then(data => {
					fadeUpdate(document.getElementById('stat-queued'), String(data.queued || 0));
					fadeUpdate(document.getElementById('stat-processing'), String(data.processing || 0));
					fadeUpdate(document.getElementById('stat-done'), String(data.done || 0));
					fadeUpdate(document.getElementById('stat-failed'), String(data.failed || 0));
				});
			fetch('/dashboard/api/metrics')
				.then(r => r.json())
				.then(data => {
					fadeUpdate(document.getElementById('stat-retried'), String(data.jobsRetried || 0));
					fadeUpdate(document.getElementById('stat-leased'), String(data.jobsLeased || 0));
				});
		}

		function updateJobs() {
			fetch('/dashboard/api/jobs')
				.then(r => r.json())
				.then(jobs => {
					const tbody = document.getElementById('jobs-body');
					tbody.innerHTML = '';
					(jobs || []).forEach(job => {
						const row = document.createElement('tr');
						row.innerHTML = '<td>' + job.id + '</td><td>' + job.type + '</td><td>' + job.target +
							'</td><td>' + job.attempts + '/' + job.maxAttempts + '</td><td class="status-' + job.status + '">' + job.status + '</td>';
						tbody.appendChild(row);
					});
				});
		}

		function updateAll() {
			updateStats();
			updateJobs();
		}

		updateAll();
		setInterval(updateAll, 5000);
	</script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, tmpl)
}
