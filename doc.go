package cfpsmerge

// Copyright 2015 Kerby Shedden

/*

Package cfpsmerge extracts variables from the yearly Stata files of
the China Family Panel Studies (CFPS) and merges them into a single
long-format dataset, with one row per person and survey year.

The survey renames its variables from wave to wave.  A Catalog, loaded
from a CSV file with one row per logical variable and one column per
survey year, maps each stable logical name (e.g. "gender") to the
physical column used in each year's file.  A Generator uses the
catalog to read only the needed columns from each year's adult file,
recodes the CFPS non-response codes (-10, -9, -8, -2, -1) to missing,
renames the columns back to their logical names, and stacks the years
into one Table.  The Table is written as a parquet or CSV file.

Reading of the binary statistical files is done with
github.com/kshedden/datareader, and every column of a Table is a
datareader Series.  Years whose file is absent or unreadable are
skipped with a logged warning; generation only fails when no year
contributes any data.

*/
