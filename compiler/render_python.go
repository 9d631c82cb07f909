package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const pythonRuntime = `def _run_inline(source, params, **context):
    namespace = {"params": params}
    exec(compile(source, "<inline>", "exec"), namespace)
    entrypoint = namespace.get("main")
    if callable(entrypoint):
        return entrypoint(**params)
    return None


def _run_git(repository, branch, revision, script_path, callable_name, params, **context):
    import importlib.util
    import os
    import subprocess
    import tempfile

    workdir = tempfile.mkdtemp(prefix="dagforge_")
    subprocess.run(["git", "clone", "--branch", branch, repository, workdir], check=True)
    if revision != "latest":
        subprocess.run(["git", "-C", workdir, "checkout", revision], check=True)
    spec = importlib.util.spec_from_file_location("dagforge_task", os.path.join(workdir, script_path))
    module = importlib.util.module_from_spec(spec)
    spec.loader.exec_module(module)
    return getattr(module, callable_name)(**params)
`

type pythonRenderer struct{}

func (pythonRenderer) Extension() string {
	return ".py"
}

// Render emits an Airflow DAG module. Every string is written as a JSON
// string literal, which is also a valid Python literal. Task code and params
// are module constants bound with functools.partial, never operator fields,
// so the engine does not run them through its templating.
func (pythonRenderer) Render(p *Pipeline) ([]byte, error) {
	var b bytes.Buffer
	index := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		index[s.Id] = i
	}

	fmt.Fprintf(&b, "# Generated by dagforge for workflow %s. Do not edit.\n", quote(p.Name))
	b.WriteString("import functools\n")
	b.WriteString("import json\n")
	b.WriteString("from datetime import datetime, timedelta\n\n")
	b.WriteString("from airflow import DAG\n")
	b.WriteString("from airflow.operators.python import PythonOperator\n\n\n")
	b.WriteString(pythonRuntime)
	b.WriteString("\n\n")
	b.WriteString("default_args = {\"owner\": \"dagforge\", \"depends_on_past\": False}\n\n")

	for i, s := range p.Steps {
		params, err := json.Marshal(s.Params)
		if err != nil {
			return nil, &CompilationError{WorkflowId: p.WorkflowId, Reason: "step '" + s.Id + "' params", Err: err}
		}
		switch {
		case s.Inline != nil:
			fmt.Fprintf(&b, "STEP_%d_SOURCE = %s\n", i, quote(s.Inline.Source))
		case s.Git != nil:
			fmt.Fprintf(&b, "STEP_%d_GIT = {\"repository\": %s, \"branch\": %s, \"revision\": %s, \"script_path\": %s, \"callable_name\": %s}\n",
				i, quote(s.Git.Repository), quote(s.Git.Branch), quote(s.Git.Revision),
				quote(s.Git.ScriptPath), quote(s.Git.Callable))
		default:
			return nil, &CompilationError{WorkflowId: p.WorkflowId, Reason: "step '" + s.Id + "' has no executor"}
		}
		fmt.Fprintf(&b, "STEP_%d_PARAMS = json.loads(%s)\n", i, quote(string(params)))
	}
	if len(p.Steps) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("with DAG(\n")
	fmt.Fprintf(&b, "    dag_id=%s,\n", quote(p.Id))
	if p.Description != "" {
		fmt.Fprintf(&b, "    description=%s,\n", quote(p.Description))
	} else {
		b.WriteString("    description=None,\n")
	}
	fmt.Fprintf(&b, "    schedule_interval=%s,\n", quote(p.Schedule))
	b.WriteString("    start_date=datetime(2024, 1, 1),\n")
	b.WriteString("    catchup=False,\n")
	b.WriteString("    default_args=default_args,\n")
	fmt.Fprintf(&b, "    tags=[\"dagforge\", %s],\n", quote(p.WorkflowId))
	b.WriteString(") as dag:\n")

	if len(p.Steps) == 0 {
		b.WriteString("    pass\n")
	}
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "    step_%d = PythonOperator(\n", i)
		fmt.Fprintf(&b, "        task_id=%s,\n", quote(s.Id))
		if s.Inline != nil {
			fmt.Fprintf(&b, "        python_callable=functools.partial(_run_inline, source=STEP_%d_SOURCE, params=STEP_%d_PARAMS),\n", i, i)
		} else {
			fmt.Fprintf(&b, "        python_callable=functools.partial(_run_git, params=STEP_%d_PARAMS, **STEP_%d_GIT),\n", i, i)
		}
		fmt.Fprintf(&b, "        retries=%d,\n", s.Retries)
		fmt.Fprintf(&b, "        retry_delay=timedelta(seconds=%d),\n", s.RetryDelaySeconds)
		fmt.Fprintf(&b, "        executor_config={\"image\": %s},\n", quote(s.Image))
		b.WriteString("    )\n")
	}

	edges := false
	for i, s := range p.Steps {
		for _, up := range s.Upstream {
			j, ok := index[up]
			if !ok {
				return nil, &CompilationError{WorkflowId: p.WorkflowId, Reason: "step '" + s.Id + "' depends on unknown step '" + up + "'"}
			}
			if !edges {
				b.WriteString("\n")
				edges = true
			}
			fmt.Fprintf(&b, "    step_%d >> step_%d\n", j, i)
		}
	}
	return b.Bytes(), nil
}

func quote(s string) string {
	q, _ := json.Marshal(s)
	return string(q)
}
